package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ebeckert/letterwell/internal/apperr"
	"github.com/ebeckert/letterwell/internal/auth"
	"github.com/ebeckert/letterwell/internal/model"
	"github.com/ebeckert/letterwell/internal/store"
)

type ctxKey int

const userKey ctxKey = iota

// UserFrom returns the account resolved by RequireAuth, or nil.
func UserFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

// UserSource is the account lookup RequireAuth performs on every request.
type UserSource interface {
	UserByID(ctx context.Context, id uint) (*model.User, error)
}

// bearerToken extracts the token from the Authorization header. Empty means
// absent or malformed.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// RequireAuth verifies the bearer token and confirms the referenced account
// still exists, attaching it to the request context. Exactly one database
// read per request.
func RequireAuth(issuer *auth.TokenIssuer, users UserSource, rp responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				rp.error(w, apperr.New(apperr.CodeAuthRequired, "Token is missing"))
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				rp.error(w, err)
				return
			}

			u, err := users.UserByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					rp.error(w, apperr.New(apperr.CodeUserNotFound, "User not found"))
					return
				}
				rp.error(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
		})
	}
}

// CORS mirrors the allowed origin back and answers preflight requests.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
