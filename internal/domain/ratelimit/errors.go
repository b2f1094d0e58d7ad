package ratelimit

import (
	"errors"
	"time"
)

// LimitError reports which window rejected an action.
type LimitError struct {
	Window  Window
	Limit   int64
	Count   int64
	ResetAt time.Time
	Message string
}

func (e *LimitError) Error() string {
	return e.Message
}

func (e *LimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

// RetryAfter is the time left until the rejecting window resets.
func (e *LimitError) RetryAfter(now time.Time) time.Duration {
	if e == nil || e.ResetAt.IsZero() {
		return 0
	}
	d := e.ResetAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func newLimitError(w Window, c Counter, limit int64) *LimitError {
	return &LimitError{
		Window:  w,
		Limit:   limit,
		Count:   c.Count,
		ResetAt: c.ResetAt,
		Message: limitMessage(w),
	}
}

func limitMessage(w Window) string {
	switch w {
	case WindowUniversal:
		return "Write limit reached. Please try again in an hour."
	case WindowMinute:
		return "Minute limit reached. Please wait 5 minutes."
	case WindowHour:
		return "Hour limit reached. Please try again in a few hours."
	case WindowDay:
		return "Daily limit reached. Please try again tomorrow."
	default:
		return "Rate limit reached. Please try again later."
	}
}

// AsLimitError extracts a *LimitError from err.
func AsLimitError(err error) (*LimitError, bool) {
	var le *LimitError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
