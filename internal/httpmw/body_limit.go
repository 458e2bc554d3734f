package httpmw

import "net/http"

// DefaultMaxBodyBytes is the default request body cap for the demo API.
const DefaultMaxBodyBytes = 512 * 1024

// MaxBodySize returns middleware that rejects request bodies larger than
// max bytes.
func MaxBodySize(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, max)
			}
			next.ServeHTTP(w, r)
		})
	}
}
