package middleware

import (
	"mime"
	"net/http"
)

// MaxBodyBytes caps request bodies accepted by the JSON endpoints
const MaxBodyBytes = 1 << 20

// RequireJSON rejects requests with a body that is not declared as JSON and
// limits the body size.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				http.Error(w, "content type must be application/json", http.StatusUnsupportedMediaType)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
