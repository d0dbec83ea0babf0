package posts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmarjanovic/gopress/internal/auth"
	"github.com/dmarjanovic/gopress/internal/telemetry/metrics"
)

type sinkMock struct {
	saved map[string][]byte
	err   error
}

func newSinkMock() *sinkMock {
	return &sinkMock{saved: make(map[string][]byte)}
}

func (s *sinkMock) Save(_ context.Context, originalFilename string, file io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	content, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("stored-%d-%s", len(s.saved), originalFilename)
	s.saved[name] = content
	return name, nil
}

type handlerFixture struct {
	repo     *repoMock
	sink     *sinkMock
	handler  *Handler
	router   *mux.Router
	identity *auth.Identity

	author   AuthorSummary
	category CategorySummary
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	repo := newRepoMock()
	sink := newSinkMock()

	author := AuthorSummary{
		ID:       primitive.NewObjectID(),
		Username: "mila",
		Email:    "mila@example.com",
	}
	category := CategorySummary{ID: primitive.NewObjectID(), Name: "go"}
	repo.authors[author.ID] = author
	repo.categories[category.ID] = category

	handler := NewHandler(NewHandlerParams{
		Service:        NewService(repo),
		Sink:           sink,
		MetricsManager: metrics.NewTestManager(),
		DefaultImage:   "default-post.jpg",
		UploadsPath:    "/uploads/",
		MaxUploadBytes: 10 << 20,
	})

	router := mux.NewRouter()
	handler.SetupRoutes(router)

	return &handlerFixture{
		repo:    repo,
		sink:    sink,
		handler: handler,
		router:  router,
		identity: &auth.Identity{
			UserID:   author.ID.Hex(),
			Username: author.Username,
			Email:    author.Email,
		},
		author:   author,
		category: category,
	}
}

func (f *handlerFixture) addPost(t *testing.T, title string) *Post {
	t.Helper()
	post := &Post{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Content:   title + " content",
		Category:  f.category.ID,
		Author:    f.author.ID,
		CreatedAt: time.Now(),
	}
	post.Slug = SlugFor(title, post.ID)
	require.NoError(t, f.repo.Add(context.Background(), post))
	return post
}

// request dispatches through the router with an authenticated caller
func (f *handlerFixture) request(req *http.Request) *httptest.ResponseRecorder {
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), f.identity))
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestPostsRoutes(t *testing.T) {
	f := newHandlerFixture(t)

	for _, route := range []struct {
		name   string
		method string
		path   string
	}{
		{name: "list-posts", method: "GET", path: "/posts"},
		{name: "new-post", method: "POST", path: "/posts"},
		{name: "get-post", method: "GET", path: "/posts/5f3e1a"},
		{name: "update-post", method: "PUT", path: "/posts/5f3e1a"},
		{name: "delete-post", method: "DELETE", path: "/posts/5f3e1a"},
		{name: "new-comment", method: "POST", path: "/posts/5f3e1a/comments"},
	} {
		t.Run(route.name, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			var match mux.RouteMatch
			require.True(t, f.router.Match(req, &match))
			require.NotNil(t, match.Route)
			assert.Equal(t, route.name, match.Route.GetName())
		})
	}
}

func TestHandler_list(t *testing.T) {
	f := newHandlerFixture(t)
	for i := 0; i < 3; i++ {
		f.addPost(t, fmt.Sprintf("Post %d", i))
	}

	rr := f.request(httptest.NewRequest("GET", "/posts", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var result ListResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, int64(1), result.Pages)
	assert.Len(t, result.Posts, 3)
	require.NotNil(t, result.Posts[0].Author)
	assert.Equal(t, "mila", result.Posts[0].Author.Username)
}

func TestHandler_list_paginationParams(t *testing.T) {
	f := newHandlerFixture(t)
	for i := 0; i < 15; i++ {
		f.addPost(t, fmt.Sprintf("Post %d", i))
	}

	rr := f.request(httptest.NewRequest("GET", "/posts?page=2&limit=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var result ListResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, int64(15), result.Total)
	assert.Equal(t, 2, result.Page)
	assert.Equal(t, int64(2), result.Pages)
	assert.Len(t, result.Posts, 5)
}

func TestHandler_list_garbageParamsFallBackToDefaults(t *testing.T) {
	f := newHandlerFixture(t)
	f.addPost(t, "Only One")

	rr := f.request(httptest.NewRequest("GET", "/posts?page=banana&limit=-3", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var result ListResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Page)
	assert.Len(t, result.Posts, 1)
}

func TestHandler_list_invalidCategory(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.request(httptest.NewRequest("GET", "/posts?category=not-an-object-id", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"error":"invalid category ID format"}`, rr.Body.String())
}

func TestHandler_get(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Readable")

	rr := f.request(httptest.NewRequest("GET", "/posts/"+post.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var view View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, post.ID, view.ID)
	assert.Equal(t, "Readable", view.Title)
	require.NotNil(t, view.Category)
	assert.Equal(t, "go", view.Category.Name)
}

func TestHandler_get_notFound(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.request(httptest.NewRequest("GET", "/posts/"+primitive.NewObjectID().Hex(), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, `{"error":"post not found"}`, rr.Body.String())
}

func TestHandler_get_invalidID(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.request(httptest.NewRequest("GET", "/posts/nope", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"error":"invalid post ID format"}`, rr.Body.String())
}

func TestHandler_create_json(t *testing.T) {
	f := newHandlerFixture(t)

	body, err := json.Marshal(map[string]string{
		"title":    "Fresh Post",
		"content":  "fresh content",
		"category": f.category.ID.Hex(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/posts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var view View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "Fresh Post", view.Title)
	assert.Contains(t, view.Slug, "fresh-post-")
	// author comes from the authenticated caller, never from the payload
	require.NotNil(t, view.Author)
	assert.Equal(t, f.author.ID, view.Author.ID)
	// no upload in the request means the stock image
	assert.Equal(t, "http://example.com/uploads/default-post.jpg", view.FeaturedImage)
	require.NotNil(t, view.Comments)
	assert.Empty(t, view.Comments)

	assert.Equal(t, 1, f.repo.PostsCount())
}

func TestHandler_create_multipartWithImage(t *testing.T) {
	f := newHandlerFixture(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("title", "Illustrated Post"))
	require.NoError(t, form.WriteField("content", "with a picture"))
	require.NoError(t, form.WriteField("category", f.category.ID.Hex()))
	filePart, err := form.CreateFormFile(imageFormField, "cover.png")
	require.NoError(t, err)
	_, err = filePart.Write([]byte("png bytes"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest("POST", "/posts", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rr := f.request(req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var view View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Contains(t, view.FeaturedImage, "http://example.com/uploads/stored-0-")
	require.Len(t, f.sink.saved, 1)
	for _, content := range f.sink.saved {
		assert.Equal(t, []byte("png bytes"), content)
	}
}

func TestHandler_create_uploadTooLarge(t *testing.T) {
	f := newHandlerFixture(t)

	// rebuild the handler with a tight upload cap
	f.handler = NewHandler(NewHandlerParams{
		Service:        NewService(f.repo),
		Sink:           f.sink,
		MetricsManager: metrics.NewTestManager(),
		DefaultImage:   "default-post.jpg",
		UploadsPath:    "/uploads/",
		MaxUploadBytes: 1024,
	})
	f.router = mux.NewRouter()
	f.handler.SetupRoutes(f.router)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("title", "Oversized Post"))
	require.NoError(t, form.WriteField("content", "too much picture"))
	require.NoError(t, form.WriteField("category", f.category.ID.Hex()))
	filePart, err := form.CreateFormFile(imageFormField, "huge.png")
	require.NoError(t, err)
	_, err = filePart.Write(bytes.Repeat([]byte("x"), 4*1024))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest("POST", "/posts", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rr := f.request(req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, `{"error":"request body too large"}`, rr.Body.String())
	assert.Equal(t, 0, f.repo.PostsCount())
	assert.Empty(t, f.sink.saved)
}

func TestHandler_create_validation(t *testing.T) {
	f := newHandlerFixture(t)

	body, err := json.Marshal(map[string]string{"content": "orphan content"})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/posts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Errors []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "title is required")
	assert.Contains(t, resp.Errors, "category is required")
	assert.NotContains(t, resp.Errors, "content is required")

	// nothing persisted on a rejected request
	assert.Equal(t, 0, f.repo.PostsCount())
}

func TestHandler_create_titleTooLong(t *testing.T) {
	f := newHandlerFixture(t)

	longTitle := make([]byte, maxTitleLength+1)
	for i := range longTitle {
		longTitle[i] = 'x'
	}
	body, err := json.Marshal(map[string]string{
		"title":    string(longTitle),
		"content":  "content",
		"category": f.category.ID.Hex(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/posts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "title max 100 chars")
}

func TestHandler_create_invalidCategory(t *testing.T) {
	f := newHandlerFixture(t)

	body, err := json.Marshal(map[string]string{
		"title":    "Post",
		"content":  "content",
		"category": "definitely-not-hex",
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/posts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"error":"invalid category ID format"}`, rr.Body.String())
	assert.Equal(t, 0, f.repo.PostsCount())
}

func TestHandler_create_unauthenticated(t *testing.T) {
	f := newHandlerFixture(t)

	body, err := json.Marshal(map[string]string{
		"title":    "Post",
		"content":  "content",
		"category": f.category.ID.Hex(),
	})
	require.NoError(t, err)

	// no identity in the request context
	req := httptest.NewRequest("POST", "/posts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 0, f.repo.PostsCount())
}

func TestHandler_update(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Before")

	newTitle := "After The Edit"
	body, err := json.Marshal(map[string]string{"title": newTitle})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/posts/"+post.ID.Hex(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusOK, rr.Code)

	var view View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, newTitle, view.Title)
	assert.Contains(t, view.Slug, "after-the-edit-")
	// untouched fields survive
	assert.Equal(t, "Before content", view.Content)
}

func TestHandler_update_emptySuppliedField(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Stays")

	body, err := json.Marshal(map[string]string{"title": ""})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/posts/"+post.ID.Hex(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "title is required")
}

func TestHandler_update_notFound(t *testing.T) {
	f := newHandlerFixture(t)

	body, err := json.Marshal(map[string]string{"title": "Ghost"})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/posts/"+primitive.NewObjectID().Hex(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, `{"error":"post not found"}`, rr.Body.String())
}

func TestHandler_update_forbiddenWithoutIdentity(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Guarded")

	body, err := json.Marshal(map[string]string{"title": "Hijack"})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", "/posts/"+post.ID.Hex(), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandler_delete(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Short Lived")

	rr := f.request(httptest.NewRequest("DELETE", "/posts/"+post.ID.Hex(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"message":"post deleted"}`, rr.Body.String())

	rr = f.request(httptest.NewRequest("GET", "/posts/"+post.ID.Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandler_addComment(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Discussed")

	commenter := primitive.NewObjectID()
	body, err := json.Marshal(map[string]string{
		"user":    commenter.Hex(),
		"content": "great read",
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/posts/"+post.ID.Hex()+"/comments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusCreated, rr.Code)

	// the full updated post comes back
	var view View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, post.ID, view.ID)
	require.Len(t, view.Comments, 1)
	assert.Equal(t, commenter, view.Comments[0].User)
	assert.Equal(t, "great read", view.Comments[0].Content)
}

func TestHandler_addComment_validation(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Discussed")

	for name, payload := range map[string]map[string]string{
		"missing user":    {"content": "hello"},
		"missing content": {"user": primitive.NewObjectID().Hex()},
	} {
		t.Run(name, func(t *testing.T) {
			body, err := json.Marshal(payload)
			require.NoError(t, err)

			req := httptest.NewRequest("POST", "/posts/"+post.ID.Hex()+"/comments", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rr := f.request(req)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, `{"error":"user and content are required"}`, rr.Body.String())
		})
	}
}

func TestHandler_addComment_invalidUserID(t *testing.T) {
	f := newHandlerFixture(t)
	post := f.addPost(t, "Discussed")

	body, err := json.Marshal(map[string]string{
		"user":    "not-hex",
		"content": "hello",
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/posts/"+post.ID.Hex()+"/comments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, `{"error":"invalid user ID format"}`, rr.Body.String())
}

func TestHandler_addComment_postNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	body, err := json.Marshal(map[string]string{
		"user":    primitive.NewObjectID().Hex(),
		"content": "hello",
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/posts/"+primitive.NewObjectID().Hex()+"/comments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := f.request(req)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, `{"error":"post not found"}`, rr.Body.String())
}
