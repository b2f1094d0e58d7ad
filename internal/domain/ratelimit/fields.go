package ratelimit

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// CountersFromFields decodes the counters of action from a raw record.
// A window is present when its count or its reset field is; the missing
// half is left zero.
func CountersFromFields(action string, raw map[string]any) Counters {
	c, _ := decodeCounters(action, raw)
	return c
}

// StateFromFields builds the State of action for a record that exists or not.
func StateFromFields(action string, raw map[string]any, exists bool) State {
	if !exists {
		return State{}
	}
	c, incomplete := decodeCounters(action, raw)
	return State{Exists: true, Counters: c, Incomplete: incomplete}
}

func decodeCounters(action string, raw map[string]any) (Counters, map[Window]bool) {
	out := Counters{}
	var incomplete map[Window]bool
	if raw == nil {
		return out, incomplete
	}
	for _, w := range Windows {
		count, okc := asInt64(raw[w.CountField(action)])
		reset, okr := asResetTime(raw[w.ResetField(action)])
		if !okc && !okr {
			continue
		}
		out[w] = Counter{Count: count, ResetAt: reset}
		if !okc || !okr {
			if incomplete == nil {
				incomplete = map[Window]bool{}
			}
			incomplete[w] = true
		}
	}
	return out, incomplete
}

// FieldsFromCounters encodes counters into record fields.
func FieldsFromCounters(action string, c Counters) map[string]any {
	out := make(map[string]any, len(c)*2)
	for w, v := range c {
		out[w.CountField(action)] = v.Count
		out[w.ResetField(action)] = ResetTimeToMillis(v.ResetAt)
	}
	return out
}

// LastWriteFromFields returns lastWrite when it is a timestamp or ms number.
func LastWriteFromFields(raw map[string]any) (time.Time, bool) {
	v, ok := raw[LastWriteField]
	if !ok || v == nil {
		return time.Time{}, false
	}
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	return asResetTime(v)
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float32:
		return int64(t), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// asResetTime accepts ms-epoch numbers (storefront format) and timestamps.
func asResetTime(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t.UTC(), true
	}
	ms, ok := asInt64(v)
	if !ok {
		return time.Time{}, false
	}
	return ResetTimeFromMillis(ms), true
}
