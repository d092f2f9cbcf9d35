package auth

import (
	"net/http"
	"strings"

	"copyinvest/src/model"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// OperatorHeader optionally names the staff member behind a request. It is recorded
// on exceptions and logs only; the bearer token is what grants access.
const OperatorHeader = "X-Operator"

const defaultOperator = "admin"

// RequireAdminToken accepts requests whose bearer token matches tokenHash, a bcrypt
// hash. An empty hash rejects everything.
func RequireAdminToken(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok || tokenHash == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				logger.WithField("path", r.URL.Path).Warn("admin token mismatch")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			name := strings.TrimSpace(r.Header.Get(OperatorHeader))
			if name == "" {
				name = defaultOperator
			}
			ctx := WithOperator(r.Context(), &model.Operator{Name: name})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
