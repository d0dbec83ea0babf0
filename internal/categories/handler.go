package categories

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dmarjanovic/gopress/pkg"
)

type categoriesRepo interface {
	All(ctx context.Context) ([]Category, error)
	Add(ctx context.Context, name string) (*Category, error)
}

type Handler struct {
	repo categoriesRepo
}

func NewHandler(repo categoriesRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/categories", handler.handleAll).Methods("GET").Name("all-categories")
	router.HandleFunc("/categories", handler.handleAdd).Methods("POST", "OPTIONS").Name("new-category")
}

func (handler *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	all, err := handler.repo.All(r.Context())
	if err != nil {
		log.Errorf("get all categories: %s", err)
		pkg.WriteJSONError(w, "failed to fetch categories", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, map[string][]Category{"categories": all}, http.StatusOK)
}

type newCategoryRequest struct {
	Name string `json:"name"`
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var categoryReq newCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&categoryReq); err != nil {
		log.Errorf("new category, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "failed to parse category", http.StatusBadRequest)
		return
	}

	if categoryReq.Name == "" {
		pkg.WriteJSONError(w, "category name is required", http.StatusBadRequest)
		return
	}
	if len(categoryReq.Name) > maxNameLength {
		pkg.WriteJSONError(w, "category name max 50 chars", http.StatusBadRequest)
		return
	}

	category, err := handler.repo.Add(r.Context(), categoryReq.Name)
	if errors.Is(err, ErrCategoryExists) {
		pkg.WriteJSONError(w, "category already exists", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorf("add category: %s", err)
		pkg.WriteJSONError(w, "failed to create category", http.StatusInternalServerError)
		return
	}

	log.Tracef("new category %s: [%s] added", category.ID.Hex(), category.Name)
	pkg.WriteJSONResponse(w, category, http.StatusCreated)
}
