package middleware

import (
	"mime"
	"net/http"
)

// RequireJSON rejects POST, PUT and PATCH requests whose Content-Type is set
// to something other than application/json. A missing Content-Type is
// accepted, as the web client posts bare fetch bodies.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only check for methods that typically have a body
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnsupportedMediaType)
					_, _ = w.Write([]byte(`{"error":"Content-Type must be application/json"}` + "\n"))
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
