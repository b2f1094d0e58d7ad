package usecase

import (
	"strings"
	"time"

	cartdom "thriftmall/internal/domain/cart"
)

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ThrottleObserver receives every throttle decision.
// outcome is one of "accepted", "rejected", "error".
type ThrottleObserver interface {
	ObserveDecision(action, window, outcome string)
}

// MergeObserver receives every completed cart merge.
type MergeObserver interface {
	ObserveMerge(res cartdom.MergeResult)
}

type nopObserver struct{}

func (nopObserver) ObserveDecision(string, string, string) {}
func (nopObserver) ObserveMerge(cartdom.MergeResult)       {}

// ログ用マスク
func _mask(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if len(t) <= 10 {
		return t
	}
	return t[:4] + "***" + t[len(t)-4:]
}
