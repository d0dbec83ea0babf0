package posts

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// postPayload is the decoded body of a create/update request; nil fields
// were not supplied
type postPayload struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`

	ImageFile     multipart.File `json:"-"`
	ImageFilename string         `json:"-"`
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var errBodyTooLarge = errors.New("request body too large")

// the multipart reader does not always wrap the MaxBytesReader error,
// so fall back to matching its fixed message
func isMaxBytesError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}
	return strings.Contains(err.Error(), "http: request body too large")
}

// parsePostPayload handles both JSON bodies and multipart forms with an
// optional image file field. The body is hard-capped at maxUploadBytes;
// oversize requests fail with errBodyTooLarge.
func (handler *Handler) parsePostPayload(w http.ResponseWriter, r *http.Request) (*postPayload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, handler.maxUploadBytes)

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		var payload postPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			if isMaxBytesError(err) {
				return nil, errBodyTooLarge
			}
			return nil, fmt.Errorf("decode json payload: %w", err)
		}
		return &payload, nil
	}

	if err := r.ParseMultipartForm(handler.maxUploadBytes); err != nil {
		if isMaxBytesError(err) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}

	payload := &postPayload{}
	for field, target := range map[string]**string{
		"title":    &payload.Title,
		"content":  &payload.Content,
		"category": &payload.Category,
	} {
		if values, ok := r.MultipartForm.Value[field]; ok && len(values) > 0 {
			value := values[0]
			*target = &value
		}
	}

	file, header, err := r.FormFile(imageFormField)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return nil, fmt.Errorf("read image file: %w", err)
	}
	if err == nil {
		payload.ImageFile = file
		payload.ImageFilename = header.Filename
	}

	return payload, nil
}
