package ratelimit

import "time"

// Outcome is the result of evaluating one action against a record.
//
// Write holds the counters to persist. On rejection it carries only the
// back-filled windows, so a rejected action never moves a counter.
type Outcome struct {
	Created bool
	Write   Counters
	Err     *LimitError
}

// Accepted reports whether the action may proceed.
func (o Outcome) Accepted() bool {
	return o.Err == nil
}

// Evaluate applies one action to state. It is pure so stores can re-run it
// when a transaction retries.
func Evaluate(state State, opts Options, now time.Time) Outcome {
	if !state.Exists {
		write := make(Counters, len(Windows))
		for _, w := range Windows {
			write[w] = Counter{Count: 1, ResetAt: now.Add(w.Duration())}
		}
		return Outcome{Created: true, Write: write}
	}

	current := state.Counters.clone()
	backfill := Counters{}
	for _, w := range Windows {
		c, ok := current[w]
		if ok && !state.Incomplete[w] {
			continue
		}
		// only the missing half is filled; a stored count is kept
		if c.ResetAt.IsZero() {
			c.ResetAt = now.Add(w.Duration())
		}
		current[w] = c
		backfill[w] = c
	}

	write := backfill.clone()
	for _, w := range Windows {
		c := current[w]
		limit := opts.Limit(w)
		switch {
		case now.After(c.ResetAt):
			c = Counter{Count: 1, ResetAt: now.Add(w.Duration())}
		case c.Count < limit:
			c.Count++
		default:
			return Outcome{Write: backfill, Err: newLimitError(w, c, limit)}
		}
		write[w] = c
	}
	return Outcome{Write: write}
}

// Report turns state into per-window usage as of now.
// Expired or absent windows report a zero count.
func Report(state State, opts Options, now time.Time) []Usage {
	out := make([]Usage, 0, len(Windows))
	for _, w := range Windows {
		limit := opts.Limit(w)
		c, ok := state.Counters[w]
		if ok && c.ResetAt.IsZero() {
			c.ResetAt = now.Add(w.Duration())
		}
		if !state.Exists || !ok || now.After(c.ResetAt) {
			c = Counter{Count: 0, ResetAt: now.Add(w.Duration())}
		}
		remaining := limit - c.Count
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Usage{
			Window:    w,
			Count:     c.Count,
			Limit:     limit,
			Remaining: remaining,
			ResetAt:   c.ResetAt,
		})
	}
	return out
}
