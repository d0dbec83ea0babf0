package middleware

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dmarjanovic/gopress/internal/auth"
	"github.com/dmarjanovic/gopress/pkg"
)

type AuthMiddlewareHandler struct {
	checker            auth.Checker
	publicGetPrefixes  []string
	publicPathPrefixes []string
}

func NewAuthMiddlewareHandler(checker auth.Checker) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		checker: checker,
		// reads are open, writes need a token
		publicGetPrefixes: []string{
			"/posts",
			"/categories",
			"/uploads/",
		},
		publicPathPrefixes: []string{
			"/auth/",
		},
	}
}

func (h *AuthMiddlewareHandler) requestIsPublic(r *http.Request) bool {
	for _, prefix := range h.publicPathPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	if r.Method != http.MethodGet {
		return false
	}
	for _, prefix := range h.publicGetPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, PUT, DELETE, OPTIONS")
				w.WriteHeader(http.StatusOK)
				return
			}

			if h.requestIsPublic(r) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" || token == authHeader {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				pkg.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := h.checker.Verify(r.Context(), token)
			if err != nil {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s: %s", r.URL.Path, err)
				pkg.WriteJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(
				auth.ContextWithIdentity(r.Context(), identity),
			))
		})
	}
}
