// internal/adapters/in/http/middleware/user_auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
)

// UserAuthMiddleware verifies the Firebase ID token (buyer/user side) and
// stores uid/email in context.
type UserAuthMiddleware struct {
	FirebaseAuth IDTokenVerifier
}

func (m *UserAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.FirebaseAuth == nil {
			http.Error(w, "user auth middleware not initialized", http.StatusServiceUnavailable)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "unauthorized: missing bearer token", http.StatusUnauthorized)
			return
		}

		idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if idToken == "" {
			http.Error(w, "unauthorized: empty bearer token", http.StatusUnauthorized)
			return
		}

		token, err := m.FirebaseAuth.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			log.Printf("[user_auth] verify failed (len=%d): %v", len(idToken), err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		uid := strings.TrimSpace(token.UID)
		if uid == "" {
			http.Error(w, "invalid uid in token", http.StatusUnauthorized)
			return
		}

		ctx := WithUID(r.Context(), uid)
		if e, ok := token.Claims["email"].(string); ok && strings.TrimSpace(e) != "" {
			ctx = context.WithValue(ctx, ctxKeyEmail, strings.TrimSpace(e))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentUserUID returns Firebase UID for buyer/user side.
func CurrentUserUID(r *http.Request) (string, bool) {
	vUID := r.Context().Value(ctxKeyUID)
	u, ok := vUID.(string)
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	return strings.TrimSpace(u), true
}

// CurrentUserUIDAndEmail returns uid/email (email can be empty).
func CurrentUserUIDAndEmail(r *http.Request) (uid string, email string, ok bool) {
	uid, ok = CurrentUserUID(r)
	if !ok {
		return "", "", false
	}
	if e, okEmail := r.Context().Value(ctxKeyEmail).(string); okEmail {
		email = strings.TrimSpace(e)
	}
	return uid, email, true
}
