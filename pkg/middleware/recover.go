package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/logger"
)

// Recover turns a panic in a handler into a generic 500. The panic value
// and stack are logged; neither reaches the client.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			logger.FromContext(r.Context()).Error("panic serving request",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", p,
				slog.String("stack", string(debug.Stack())),
			)
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}
