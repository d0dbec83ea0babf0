package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmarjanovic/gopress/internal/auth"
	"github.com/dmarjanovic/gopress/pkg"
)

type usersRepo interface {
	Add(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type tokenIssuer interface {
	Issue(userID, username, email string) (string, error)
}

var _ tokenIssuer = (*auth.Service)(nil)

type Handler struct {
	repo   usersRepo
	issuer tokenIssuer
}

func NewHandler(repo usersRepo, issuer tokenIssuer) *Handler {
	return &Handler{
		repo:   repo,
		issuer: issuer,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", handler.handleRegister).Methods("POST", "OPTIONS").Name("register")
	router.HandleFunc("/auth/login", handler.handleLogin).Methods("POST", "OPTIONS").Name("login")
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  Summary `json:"user"`
	Token string  `json:"token"`
}

func (handler *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var registerReq registerRequest
	if err := json.NewDecoder(r.Body).Decode(&registerReq); err != nil {
		log.Errorf("register, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "failed to parse registration", http.StatusBadRequest)
		return
	}

	if registerReq.Username == "" || registerReq.Email == "" || registerReq.Password == "" {
		pkg.WriteJSONError(w, "all fields are required", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(registerReq.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		pkg.WriteJSONError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	user := &User{
		ID:           primitive.NewObjectID(),
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	err = handler.repo.Add(r.Context(), user)
	if errors.Is(err, ErrUserExists) {
		pkg.WriteJSONError(w, "username or email already exists", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorf("register user: %s", err)
		pkg.WriteJSONError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.issuer.Issue(user.ID.Hex(), user.Username, user.Email)
	if err != nil {
		log.Errorf("register, issue token: %s", err)
		pkg.WriteJSONError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	log.Tracef("new user %s: [%s] registered", user.ID.Hex(), user.Username)

	pkg.WriteJSONResponse(w, sessionResponse{
		User:  user.Summary(),
		Token: token,
	}, http.StatusCreated)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginReq loginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		log.Errorf("login, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "failed to parse login", http.StatusBadRequest)
		return
	}

	if loginReq.Email == "" || loginReq.Password == "" {
		pkg.WriteJSONError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	user, err := handler.repo.GetByEmail(r.Context(), loginReq.Email)
	if errors.Is(err, ErrUserNotFound) {
		// same response as a wrong password, no account probing
		pkg.WriteJSONError(w, "invalid credentials", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorf("login, get user: %s", err)
		pkg.WriteJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}

	if !pkg.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		pkg.WriteJSONError(w, "invalid credentials", http.StatusBadRequest)
		return
	}

	token, err := handler.issuer.Issue(user.ID.Hex(), user.Username, user.Email)
	if err != nil {
		log.Errorf("login, issue token: %s", err)
		pkg.WriteJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, sessionResponse{
		User:  user.Summary(),
		Token: token,
	}, http.StatusOK)
}
