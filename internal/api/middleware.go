package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// corsMiddleware applies the configured CORS policy and short-circuits
// preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request,
// or "" when the origin is not allowed.
func (s *Server) allowOrigin(r *http.Request) string {
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" {
			return "*"
		}
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return ""
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// handle registers a route pattern and instruments it with request metrics.
// The pattern's method and path become the metric labels, keeping the label
// space bounded regardless of what clients send.
func (s *Server) handle(pattern string, handler http.HandlerFunc) {
	method, route, found := strings.Cut(pattern, " ")
	if !found {
		method, route = "", pattern
	}
	s.router.Handle(pattern, s.instrument(method, route, handler))
}

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with duration and count metrics.
func (s *Server) instrument(method, route string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := method
		if m == "" {
			m = r.Method
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		s.metrics.HTTPRequestDuration.WithLabelValues(m, route).Observe(time.Since(start).Seconds())
		s.metrics.HTTPRequestsTotal.WithLabelValues(m, route, strconv.Itoa(recorder.status)).Inc()
	})
}
