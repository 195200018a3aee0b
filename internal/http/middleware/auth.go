package middlewarex

import (
	"crypto/subtle"
	"net/http"

	"oaiserve/internal/config"
)

// AdminAuth guards admin routes with the X-Admin-Token header. An unset
// admin token disables the routes entirely.
func AdminAuth(cfg config.Cfg) func(http.Handler) http.Handler {
	want := []byte(cfg.Sec.AdminToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("X-Admin-Token"))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
