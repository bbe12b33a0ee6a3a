package util

import (
	"net/http"
	"runtime/debug"
)

// WithRecovery turns a handler panic into a 500 and logs the stack.
// onPanic writes the response; it is skipped when nothing can be written.
func WithRecovery(onPanic func(w http.ResponseWriter, r *http.Request), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			LoggerFromContext(r.Context()).Error("panic recovered",
				"error", v,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			if rec.status != 0 {
				return
			}
			if onPanic != nil {
				onPanic(rec, r)
				return
			}
			http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()
		next.ServeHTTP(rec, r)
	})
}
