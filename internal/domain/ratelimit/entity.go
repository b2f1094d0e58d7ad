// internal/domain/ratelimit/entity.go
package ratelimit

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Window is one fixed-duration counting interval of a usage record.
type Window string

const (
	WindowUniversal Window = "universal"
	WindowMinute    Window = "minute"
	WindowHour      Window = "hour"
	WindowDay       Window = "day"
)

// Windows is the fixed evaluation order.
var Windows = []Window{WindowUniversal, WindowMinute, WindowHour, WindowDay}

// Duration returns the window length.
//
// NOTE:
// "minute" spans 5 minutes and "hour" spans 12 hours. The names are kept
// because existing records in the store use them as field prefixes.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowUniversal:
		return time.Hour
	case WindowMinute:
		return 5 * time.Minute
	case WindowHour:
		return 12 * time.Hour
	case WindowDay:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// CountField returns the document field holding the window count.
// The universal window is shared by every action on the record.
func (w Window) CountField(action string) string {
	if w == WindowUniversal {
		return "writeCount"
	}
	return action + "_" + string(w) + "WriteCount"
}

// ResetField returns the document field holding the window reset time (ms epoch).
func (w Window) ResetField(action string) string {
	if w == WindowUniversal {
		return "resetTime"
	}
	return action + "_" + string(w) + "ResetTime"
}

// LastWriteField is stamped with the server time on every accepted action.
const LastWriteField = "lastWrite"

const DefaultCollection = "usage_metadata"

// Options configures one Attempt call. Zero values fall back to the defaults.
type Options struct {
	CollectionName string `json:"collectionName,omitempty"`
	WriteLimit     int64  `json:"writeLimit,omitempty"`
	MinuteLimit    int64  `json:"minuteLimit,omitempty"`
	HourLimit      int64  `json:"hourLimit,omitempty"`
	DayLimit       int64  `json:"dayLimit,omitempty"`
}

// DefaultOptions mirrors the limits the storefront has always used.
func DefaultOptions() Options {
	return Options{
		CollectionName: DefaultCollection,
		WriteLimit:     100,
		MinuteLimit:    8,
		HourLimit:      40,
		DayLimit:       150,
	}
}

// WithDefaults fills every unset field from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	o.CollectionName = strings.TrimSpace(o.CollectionName)
	if o.CollectionName == "" {
		o.CollectionName = d.CollectionName
	}
	if o.WriteLimit <= 0 {
		o.WriteLimit = d.WriteLimit
	}
	if o.MinuteLimit <= 0 {
		o.MinuteLimit = d.MinuteLimit
	}
	if o.HourLimit <= 0 {
		o.HourLimit = d.HourLimit
	}
	if o.DayLimit <= 0 {
		o.DayLimit = d.DayLimit
	}
	return o
}

// Limit returns the configured limit for w.
func (o Options) Limit(w Window) int64 {
	switch w {
	case WindowUniversal:
		return o.WriteLimit
	case WindowMinute:
		return o.MinuteLimit
	case WindowHour:
		return o.HourLimit
	case WindowDay:
		return o.DayLimit
	default:
		return 0
	}
}

var collectionPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)

// Validate rejects option sets that cannot be persisted.
func (o Options) Validate() error {
	if !collectionPattern.MatchString(o.CollectionName) {
		return fmt.Errorf("%w: collectionName %q", ErrInvalidOptions, o.CollectionName)
	}
	for _, w := range Windows {
		if o.Limit(w) <= 0 {
			return fmt.Errorf("%w: %s limit must be positive", ErrInvalidOptions, w)
		}
	}
	return nil
}

// Key addresses the counters of one action on one user's record.
type Key struct {
	Collection string
	UserID     string
	Action     string
}

var actionPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// ValidateAction rejects action names that cannot prefix a field name.
func ValidateAction(action string) error {
	if !actionPattern.MatchString(strings.TrimSpace(action)) {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return nil
}

// NewKey normalizes and validates the key parts.
func NewKey(collection, userID, action string) (Key, error) {
	k := Key{
		Collection: strings.TrimSpace(collection),
		UserID:     strings.TrimSpace(userID),
		Action:     strings.TrimSpace(action),
	}
	if k.UserID == "" || strings.Contains(k.UserID, "/") {
		return Key{}, ErrInvalidUserID
	}
	if !actionPattern.MatchString(k.Action) {
		return Key{}, ErrInvalidAction
	}
	if !collectionPattern.MatchString(k.Collection) {
		return Key{}, fmt.Errorf("%w: collectionName %q", ErrInvalidOptions, k.Collection)
	}
	return k, nil
}

// Counter is the state of one window.
type Counter struct {
	Count   int64
	ResetAt time.Time
}

// Counters holds the windows present on a record for one action.
// A missing entry means the field is absent from the document.
type Counters map[Window]Counter

func (c Counters) clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// State is what a Store read yields for a Key.
//
// Incomplete marks windows where only one of the count and reset fields is
// stored. The stored half is kept in Counters and the missing half is zero.
type State struct {
	Exists     bool
	Counters   Counters
	Incomplete map[Window]bool
}

// Usage reports one window without mutating it.
type Usage struct {
	Window    Window    `json:"window"`
	Count     int64     `json:"count"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// ResetTimeToMillis encodes a reset time the way the storefront stores it.
func ResetTimeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// ResetTimeFromMillis decodes a ms-epoch reset time.
func ResetTimeFromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Sentinel errors.
var (
	ErrRateLimitExceeded = errors.New("ratelimit: limit exceeded")
	ErrStoreUnavailable  = errors.New("ratelimit: store unavailable")
	ErrInvalidUserID     = errors.New("ratelimit: invalid user id")
	ErrInvalidAction     = errors.New("ratelimit: invalid action type")
	ErrInvalidOptions    = errors.New("ratelimit: invalid options")
)
