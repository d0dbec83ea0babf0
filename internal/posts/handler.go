package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmarjanovic/gopress/internal/auth"
	"github.com/dmarjanovic/gopress/internal/telemetry/metrics"
	"github.com/dmarjanovic/gopress/pkg"
)

const imageFormField = "featuredImage"

type uploadSink interface {
	Save(ctx context.Context, originalFilename string, file io.Reader) (string, error)
}

// WritePolicy decides whether the caller may mutate the given post.
// Ownership is intentionally not checked for now; swap this func to
// change that in one place.
type WritePolicy func(ctx context.Context, caller *auth.Identity, postID primitive.ObjectID) bool

func AllowAnyAuthenticated(_ context.Context, caller *auth.Identity, _ primitive.ObjectID) bool {
	return caller != nil
}

type Handler struct {
	service        *Service
	sink           uploadSink
	metricsManager *metrics.Manager
	defaultImage   string
	uploadsPath    string
	maxUploadBytes int64
	writePolicy    WritePolicy
}

type NewHandlerParams struct {
	Service        *Service
	Sink           uploadSink
	MetricsManager *metrics.Manager
	DefaultImage   string
	UploadsPath    string
	MaxUploadBytes int64
}

func NewHandler(params NewHandlerParams) *Handler {
	return &Handler{
		service:        params.Service,
		sink:           params.Sink,
		metricsManager: params.MetricsManager,
		defaultImage:   params.DefaultImage,
		uploadsPath:    strings.TrimSuffix(params.UploadsPath, "/"),
		maxUploadBytes: params.MaxUploadBytes,
		writePolicy:    AllowAnyAuthenticated,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/posts", handler.handleList).Methods("GET").Name("list-posts")
	router.HandleFunc("/posts", handler.handleCreate).Methods("POST", "OPTIONS").Name("new-post")
	router.HandleFunc("/posts/{id}", handler.handleGet).Methods("GET").Name("get-post")
	router.HandleFunc("/posts/{id}", handler.handleUpdate).Methods("PUT", "OPTIONS").Name("update-post")
	router.HandleFunc("/posts/{id}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("delete-post")
	router.HandleFunc("/posts/{id}/comments", handler.handleAddComment).Methods("POST", "OPTIONS").Name("new-comment")
}

// imageBaseURL builds the absolute prefix for stored images from the
// request's own protocol and host
func (handler *Handler) imageBaseURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, handler.uploadsPath)
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	size, err := strconv.Atoi(query.Get("limit"))
	if err != nil || size < 1 {
		size = DefaultSize
	}

	params := ListParams{
		Page:   page,
		Size:   size,
		Search: query.Get("q"),
	}
	if categoryRaw := query.Get("category"); categoryRaw != "" {
		categoryID, err := primitive.ObjectIDFromHex(categoryRaw)
		if err != nil {
			pkg.WriteJSONError(w, ErrInvalidCategoryID.Error(), http.StatusBadRequest)
			return
		}
		params.CategoryID = &categoryID
	}

	result, err := handler.service.List(r.Context(), params, handler.imageBaseURL(r))
	if err != nil {
		log.Errorf("list posts: %s", err)
		pkg.WriteJSONError(w, "failed to fetch posts", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, result, http.StatusOK)
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, ErrInvalidPostID.Error(), http.StatusBadRequest)
		return
	}

	post, err := handler.service.Get(r.Context(), id, handler.imageBaseURL(r))
	if errors.Is(err, ErrPostNotFound) {
		pkg.WriteJSONError(w, ErrPostNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("get post %s: %s", id.Hex(), err)
		pkg.WriteJSONError(w, "failed to fetch post", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, post, http.StatusOK)
}

func (handler *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		pkg.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	authorID, err := primitive.ObjectIDFromHex(identity.UserID)
	if err != nil {
		pkg.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	payload, err := handler.parsePostPayload(w, r)
	if errors.Is(err, errBodyTooLarge) {
		pkg.WriteJSONError(w, errBodyTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		log.Errorf("new post, parse payload: %s", err)
		pkg.WriteJSONError(w, "failed to parse post payload", http.StatusBadRequest)
		return
	}

	title := strOrEmpty(payload.Title)
	content := strOrEmpty(payload.Content)
	categoryRaw := strOrEmpty(payload.Category)

	if validationErrs := validateRequiredFields(title, content, categoryRaw); len(validationErrs) > 0 {
		pkg.WriteJSONValidationErrors(w, validationErrs)
		return
	}

	categoryID, err := primitive.ObjectIDFromHex(categoryRaw)
	if err != nil {
		pkg.WriteJSONError(w, ErrInvalidCategoryID.Error(), http.StatusBadRequest)
		return
	}

	// a well-formed but nonexistent category is accepted here;
	// it resolves to null on read
	imageFilename := handler.defaultImage
	if payload.ImageFile != nil {
		imageFilename, err = handler.sink.Save(r.Context(), payload.ImageFilename, payload.ImageFile)
		if err != nil {
			log.Errorf("new post, save image: %s", err)
			pkg.WriteJSONError(w, "failed to store image", http.StatusInternalServerError)
			return
		}
	}

	post, err := handler.service.Create(r.Context(), CreateParams{
		Title:         title,
		Content:       content,
		Category:      categoryID,
		ImageFilename: imageFilename,
		Author:        authorID,
	}, handler.imageBaseURL(r))
	if err != nil {
		log.Errorf("create post: %s", err)
		pkg.WriteJSONError(w, "failed to create post", http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterPostsCreated.Inc()
	}

	log.Tracef("new post %s: [%s] added", post.ID.Hex(), post.Title)
	pkg.WriteJSONResponse(w, post, http.StatusCreated)
}

func (handler *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, ErrInvalidPostID.Error(), http.StatusBadRequest)
		return
	}

	if !handler.writePolicy(r.Context(), identity, id) {
		pkg.WriteJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	payload, err := handler.parsePostPayload(w, r)
	if errors.Is(err, errBodyTooLarge) {
		pkg.WriteJSONError(w, errBodyTooLarge.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		log.Errorf("update post, parse payload: %s", err)
		pkg.WriteJSONError(w, "failed to parse post payload", http.StatusBadRequest)
		return
	}

	if validationErrs := validateSuppliedFields(payload.Title, payload.Content); len(validationErrs) > 0 {
		pkg.WriteJSONValidationErrors(w, validationErrs)
		return
	}

	params := UpdateParams{
		Title:   payload.Title,
		Content: payload.Content,
	}
	if payload.Category != nil {
		categoryID, err := primitive.ObjectIDFromHex(*payload.Category)
		if err != nil {
			pkg.WriteJSONError(w, ErrInvalidCategoryID.Error(), http.StatusBadRequest)
			return
		}
		params.Category = &categoryID
	}
	if payload.ImageFile != nil {
		// the previous file is left on disk, only the reference moves
		imageFilename, err := handler.sink.Save(r.Context(), payload.ImageFilename, payload.ImageFile)
		if err != nil {
			log.Errorf("update post, save image: %s", err)
			pkg.WriteJSONError(w, "failed to store image", http.StatusInternalServerError)
			return
		}
		params.ImageFilename = &imageFilename
	}

	post, err := handler.service.Update(r.Context(), id, params, handler.imageBaseURL(r))
	if errors.Is(err, ErrPostNotFound) {
		pkg.WriteJSONError(w, ErrPostNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("update post %s: %s", id.Hex(), err)
		pkg.WriteJSONError(w, "failed to update post", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, post, http.StatusOK)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFromContext(r.Context())
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, ErrInvalidPostID.Error(), http.StatusBadRequest)
		return
	}

	if !handler.writePolicy(r.Context(), identity, id) {
		pkg.WriteJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	err = handler.service.Delete(r.Context(), id)
	if errors.Is(err, ErrPostNotFound) {
		pkg.WriteJSONError(w, ErrPostNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("delete post %s: %s", id.Hex(), err)
		pkg.WriteJSONError(w, "failed to delete post", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponse(w, map[string]string{"message": "post deleted"}, http.StatusOK)
}

type addCommentRequest struct {
	User    string `json:"user"`
	Content string `json:"content"`
}

func (handler *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, ErrInvalidPostID.Error(), http.StatusBadRequest)
		return
	}

	var commentReq addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&commentReq); err != nil {
		log.Errorf("add comment, unmarshal json params: %s", err)
		pkg.WriteJSONError(w, "failed to parse comment", http.StatusBadRequest)
		return
	}

	if commentReq.User == "" || commentReq.Content == "" {
		pkg.WriteJSONError(w, "user and content are required", http.StatusBadRequest)
		return
	}
	userID, err := primitive.ObjectIDFromHex(commentReq.User)
	if err != nil {
		pkg.WriteJSONError(w, ErrInvalidUserID.Error(), http.StatusBadRequest)
		return
	}

	post, err := handler.service.AddComment(r.Context(), id, userID, commentReq.Content, handler.imageBaseURL(r))
	if errors.Is(err, ErrPostNotFound) {
		pkg.WriteJSONError(w, ErrPostNotFound.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		log.Errorf("add comment to post %s: %s", id.Hex(), err)
		pkg.WriteJSONError(w, "failed to add comment", http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterCommentsAdded.Inc()
	}

	pkg.WriteJSONResponse(w, post, http.StatusCreated)
}
