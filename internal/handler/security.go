package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/pkg/httpmiddleware"
)

// HeaderAPIKey carries automation API keys.
const HeaderAPIKey = "api_key"

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

// KeyAuthenticator resolves API keys.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.Principal, error)
}

var (
	_ TokenVerifier    = (*auth.TokenVerifier)(nil)
	_ KeyAuthenticator = (*auth.KeyAuthenticator)(nil)
)

// SecurityHandler identifies callers from a bearer token or an API key.
type SecurityHandler struct {
	tokens TokenVerifier
	keys   KeyAuthenticator
}

// NewSecurityHandler creates a SecurityHandler. Either source may be nil.
func NewSecurityHandler(tokens TokenVerifier, keys KeyAuthenticator) *SecurityHandler {
	return &SecurityHandler{tokens: tokens, keys: keys}
}

// Middleware attaches the caller's principal to the request context.
// Requests without credentials pass through anonymously; invalid
// credentials are rejected with 401.
func (s *SecurityHandler) Middleware() httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := s.identify(r)
			if err != nil {
				zctx.From(r.Context()).Debug("Rejected credentials", zap.Error(err))
				httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = zctx.With(ctx, zap.String("user_id", p.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *SecurityHandler) identify(r *http.Request) (*auth.Principal, error) {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		if s.keys == nil {
			return nil, auth.ErrUnauthorized
		}
		return s.keys.Authenticate(r.Context(), key)
	}
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok || s.tokens == nil {
		return nil, auth.ErrUnauthorized
	}
	return s.tokens.Verify(strings.TrimSpace(token))
}

// user requires a signed-in storefront user.
func (h *Handler) user(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p := auth.FromContext(r.Context()); p == nil || p.UserID == "" {
			h.fail(w, r, auth.ErrUnauthorized)
			return
		}
		next(w, r)
	}
}

// admin requires a principal the admin policy allows.
func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())
		switch {
		case p == nil:
			h.fail(w, r, auth.ErrUnauthorized)
		case !p.Admin:
			h.fail(w, r, auth.ErrForbidden)
		default:
			next(w, r)
		}
	}
}

func sessionID(r *http.Request) string {
	return httpmiddleware.SessionIDFromContext(r.Context())
}
