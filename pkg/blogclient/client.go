package blogclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is the HTTP client for the gopress REST API. It is safe for
// concurrent use; the bearer token is shared by all calls.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Comment struct {
	User      string    `json:"user"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Post struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Slug          string    `json:"slug"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	Category      *Category `json:"category"`
	Author        *Author   `json:"author"`
	Comments      []Comment `json:"comments"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PostsPage is the canonical listing envelope
type PostsPage struct {
	Posts []Post `json:"posts"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Pages int64  `json:"pages"`
}

type Session struct {
	User  Author `json:"user"`
	Token string `json:"token"`
}

// APIError is a non-2xx response decoded from the error envelope
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("api error [%d]: %s", e.StatusCode, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("api error [%d]: %s", e.StatusCode, e.Message)
}

type ListPostsParams struct {
	Page       int
	Limit      int
	Search     string
	CategoryID string
}

func (c *Client) ListPosts(ctx context.Context, params ListPostsParams) (*PostsPage, error) {
	query := url.Values{}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Search != "" {
		query.Set("q", params.Search)
	}
	if params.CategoryID != "" {
		query.Set("category", params.CategoryID)
	}

	var page PostsPage
	if err := c.doJSON(ctx, http.MethodGet, "/posts", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*Post, error) {
	var post Post
	if err := c.doJSON(ctx, http.MethodGet, "/posts/"+id, nil, nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// PostInput carries a full post payload; Image is optional
type PostInput struct {
	Title      string
	Content    string
	CategoryID string

	ImageFilename string
	Image         io.Reader
}

func (c *Client) CreatePost(ctx context.Context, input PostInput) (*Post, error) {
	return c.sendPost(ctx, http.MethodPost, "/posts", input)
}

func (c *Client) UpdatePost(ctx context.Context, id string, input PostInput) (*Post, error) {
	return c.sendPost(ctx, http.MethodPut, "/posts/"+id, input)
}

func (c *Client) sendPost(ctx context.Context, method, path string, input PostInput) (*Post, error) {
	var post Post

	if input.Image == nil {
		payload := map[string]string{
			"title":    input.Title,
			"content":  input.Content,
			"category": input.CategoryID,
		}
		if err := c.doJSON(ctx, method, path, nil, payload, &post); err != nil {
			return nil, err
		}
		return &post, nil
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	for field, value := range map[string]string{
		"title":    input.Title,
		"content":  input.Content,
		"category": input.CategoryID,
	} {
		if err := form.WriteField(field, value); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", field, err)
		}
	}
	filePart, err := form.CreateFormFile("featuredImage", input.ImageFilename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(filePart, input.Image); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	if err := c.do(ctx, method, path, nil, body, form.FormDataContentType(), &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/posts/"+id, nil, nil, nil)
}

func (c *Client) AddComment(ctx context.Context, postID, userID, content string) (*Post, error) {
	payload := map[string]string{
		"user":    userID,
		"content": content,
	}
	var post Post
	if err := c.doJSON(ctx, http.MethodPost, "/posts/"+postID+"/comments", nil, payload, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var envelope struct {
		Categories []Category `json:"categories"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/categories", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Categories, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string) (*Category, error) {
	var category Category
	if err := c.doJSON(ctx, http.MethodPost, "/categories", nil, map[string]string{"name": name}, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// Register creates the account and keeps the returned token for
// subsequent calls
func (c *Client) Register(ctx context.Context, username, email, password string) (*Session, error) {
	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", nil, payload, &session); err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}
	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", nil, payload, &session); err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(payloadBytes)
	}
	return c.do(ctx, method, path, query, body, "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
	}

	var envelope struct {
		Error  string   `json:"error"`
		Errors []string `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		if envelope.Error != "" {
			apiErr.Message = envelope.Error
		}
		apiErr.Details = envelope.Errors
	}
	return apiErr
}
