package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const subjectKey ctxKey = iota

// SubjectFrom returns the authenticated user id, if any.
func SubjectFrom(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok && sub != ""
}

// BearerJWTMiddleware accepts HS256 tokens signed with secret and stores
// the sub claim as the request's user id.
func BearerJWTMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				writeError(w, http.StatusUnauthorized, "Bearer token required")
				return
			}
			raw := strings.TrimSpace(header[len("Bearer "):])
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Bearer token required")
				return
			}

			token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "Invalid bearer token")
				return
			}

			sub, err := token.Claims.GetSubject()
			sub = strings.TrimSpace(sub)
			if err != nil || sub == "" {
				writeError(w, http.StatusUnauthorized, "Token subject missing")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, sub)))
		})
	}
}

// requireSubject restricts /users/{id} routes to the token's own user.
// Without authentication every id is allowed.
func requireSubject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sub, ok := SubjectFrom(r.Context()); ok && sub != chi.URLParam(r, "id") {
			writeError(w, http.StatusForbidden, "Bu kullanıcının verilerine erişim yetkiniz yok")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolveUser prefers the authenticated subject over a body-supplied id.
func resolveUser(r *http.Request, bodyUserID string) string {
	if sub, ok := SubjectFrom(r.Context()); ok {
		return sub
	}
	return strings.TrimSpace(bodyUserID)
}
