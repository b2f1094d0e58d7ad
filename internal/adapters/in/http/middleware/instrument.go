// internal/adapters/in/http/middleware/instrument.go
package middleware

import (
	"net/http"
	"strconv"
)

// RequestObserver is implemented by metrics.Metrics.
type RequestObserver interface {
	ObserveRequest(route, code string)
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Instrument counts responses of next under route (a fixed label, never the raw path).
func Instrument(route string, obs RequestObserver, next http.Handler) http.Handler {
	if obs == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		code := rec.code
		if code == 0 {
			code = http.StatusOK
		}
		obs.ObserveRequest(route, strconv.Itoa(code))
	})
}
