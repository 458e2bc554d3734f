package httpmw

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kubilitics-labs/reqopt/internal/pkg/logger"
	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
)

// ResponseRequestIDHeader is the header carrying the per-request
// correlation ID, both accepted from the caller and echoed on the response.
const ResponseRequestIDHeader = "X-Request-ID"

var requestLogOut = os.Stderr

// RequestID assigns a request ID (reusing one supplied by the caller) and
// threads it through both the request context and the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(ResponseRequestIDHeader)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		ctx := logger.WithRequestID(r.Context(), reqID)
		w.Header().Set(ResponseRequestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter captures the status code written so it can be logged after
// the handler returns.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack forwards to the underlying ResponseWriter when it supports
// hijacking (needed for the WebSocket upgrade path to pass through this
// middleware untouched).
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, fmt.Errorf("http.ResponseWriter does not support hijacking")
}

// requestTypeFor derives the analytics request-type tag from the matched
// mux route template (falling back to the raw path), so path parameters
// never fragment a single logical endpoint into many analytics keys.
func requestTypeFor(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil && tpl != "" {
			return r.Method + " " + tpl
		}
	}
	return r.Method + " " + r.URL.Path
}

// StructuredLog logs each request as one JSON line and records RED metrics,
// keyed by the route template to avoid high-cardinality path labels.
func StructuredLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := logger.FromContext(r.Context())
		requestType := requestTypeFor(r)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		errMsg := ""
		if rw.status >= 400 {
			errMsg = http.StatusText(rw.status)
		}
		logger.RequestLog(requestLogOut, reqID, requestType, "", rw.status, duration, errMsg)

		statusStr := strconv.Itoa(rw.status)
		metrics.RequestsTotal.WithLabelValues(requestType, statusStr).Inc()
		metrics.RequestDurationSeconds.WithLabelValues(requestType).Observe(duration.Seconds())
	})
}

// Recovery converts a panic in a downstream handler into a 500 response
// instead of crashing the process.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				reqID := logger.FromContext(r.Context())
				logger.RequestLog(requestLogOut, reqID, requestTypeFor(r), "", http.StatusInternalServerError, 0, fmt.Sprintf("panic: %v", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
