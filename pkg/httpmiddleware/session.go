package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// HeaderSessionID carries the anonymous shopper session.
	HeaderSessionID = "X-Session-ID"
	// SessionCookie is the cookie fallback for HeaderSessionID.
	SessionCookie = "sid"
)

type sessionIDKey struct{}

// SessionIDFromContext returns the session ID stored by SessionID, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

// WithSessionID stores id in ctx the same way SessionID does.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionConfig configures the session cookie.
type SessionConfig struct {
	MaxAge int
	Secure bool
}

// SessionID identifies the shopper's browser session. The ID is read from
// the X-Session-ID header, then the sid cookie. A missing or malformed ID is
// replaced with a fresh UUID. The ID is echoed in both the header and the
// cookie so clients can use either.
func SessionID(cfg SessionConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderSessionID)
			if id == "" {
				if c, err := r.Cookie(SessionCookie); err == nil {
					id = c.Value
				}
			}
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}

			w.Header().Set(HeaderSessionID, id)
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   cfg.MaxAge,
				Secure:   cfg.Secure,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
		})
	}
}
