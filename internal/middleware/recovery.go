package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"poolops-backend/pkg/utils"
)

// PanicRecovery converts a panicking handler into a 500 response. The log
// line carries the org scope so a billing incident can be traced to the
// tenant it hit.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				org, _ := GetOrgIDFromContext(r.Context())
				if org == "" {
					org = "unauthenticated"
				}
				log.Printf("[Recovery] panic on %s %s (org %s): %v\n%s",
					r.Method, r.URL.Path, org, rec, debug.Stack())
				utils.JSON(w, http.StatusInternalServerError, map[string]string{
					"error": "internal server error",
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
