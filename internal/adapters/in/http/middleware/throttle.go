// internal/adapters/in/http/middleware/throttle.go
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	rl "thriftmall/internal/domain/ratelimit"
)

// ActionLimiter is implemented by usecase.UserActionLimiter.
type ActionLimiter interface {
	Attempt(ctx context.Context, userID, action string, opts rl.Options, userData map[string]any) error
}

// ActionThrottle counts every mutating request of the signed-in user as one
// action. Reads (GET/HEAD/OPTIONS) pass through uncounted.
type ActionThrottle struct {
	Limiter ActionLimiter
	Action  string
	Options rl.Options
	Now     func() time.Time
}

func (t *ActionThrottle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if t == nil || t.Limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		uid, ok := CurrentUserUID(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}

		if err := t.Limiter.Attempt(r.Context(), uid, t.Action, t.Options, nil); err != nil {
			if !WriteThrottleError(w, err, t.now()) {
				log.Printf("[throttle] action=%s unexpected error: %v", t.Action, err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal_server_error"})
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *ActionThrottle) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// WriteThrottleError writes the response for an error returned by
// Attempt. It reports false when err is not a throttle error.
//
//   - limit exceeded: 429 + Retry-After
//   - store unavailable: 503 (cause is logged by the caller, not exposed)
//   - invalid user/action/options: 400
func WriteThrottleError(w http.ResponseWriter, err error, now time.Time) bool {
	if le, ok := rl.AsLimitError(err); ok {
		secs := int64(math.Ceil(le.RetryAfter(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(le.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(le.ResetAt.Unix(), 10))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":   "rate_limit_exceeded",
			"message": le.Message,
			"window":  string(le.Window),
		})
		return true
	}

	switch {
	case errors.Is(err, rl.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "store_unavailable",
			"message": "Could not check your usage right now. Please retry later.",
		})
		return true
	case errors.Is(err, rl.ErrInvalidUserID), errors.Is(err, rl.ErrInvalidAction), errors.Is(err, rl.ErrInvalidOptions):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
