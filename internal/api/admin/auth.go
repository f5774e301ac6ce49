package admin

import (
	"crypto/subtle"
	"net/http"

	"github.com/region23/testdrive/pkg/metrics"
)

// TokenHeader заголовок с токеном администратора
const TokenHeader = "X-Admin-Token"

// Auth пропускает запрос только с верным X-Admin-Token.
// Пустой token закрывает API полностью.
func Auth(token string, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(TokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn("%s %s - Unauthorized admin request from %s", r.Method, r.URL.Path, r.RemoteAddr)
				metrics.RecordError("admin_api", "unauthorized")
				RespondMessage(w, r, http.StatusUnauthorized, msgUnauthorized, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
