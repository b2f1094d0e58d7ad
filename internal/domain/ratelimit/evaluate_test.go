package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func TestEvaluate_NewRecordStartsAtOne(t *testing.T) {
	out := Evaluate(State{}, DefaultOptions(), t0)

	require.True(t, out.Accepted())
	assert.True(t, out.Created)
	require.Len(t, out.Write, len(Windows))
	for _, w := range Windows {
		assert.Equal(t, int64(1), out.Write[w].Count, w)
		assert.Equal(t, t0.Add(w.Duration()), out.Write[w].ResetAt, w)
	}
}

func TestEvaluate_IncrementsEveryWindow(t *testing.T) {
	state := State{Exists: true, Counters: Counters{
		WindowUniversal: {Count: 3, ResetAt: t0.Add(time.Hour)},
		WindowMinute:    {Count: 1, ResetAt: t0.Add(time.Minute)},
		WindowHour:      {Count: 2, ResetAt: t0.Add(time.Hour)},
		WindowDay:       {Count: 9, ResetAt: t0.Add(time.Hour)},
	}}

	out := Evaluate(state, DefaultOptions(), t0)

	require.True(t, out.Accepted())
	assert.False(t, out.Created)
	assert.Equal(t, int64(4), out.Write[WindowUniversal].Count)
	assert.Equal(t, int64(2), out.Write[WindowMinute].Count)
	assert.Equal(t, int64(3), out.Write[WindowHour].Count)
	assert.Equal(t, int64(10), out.Write[WindowDay].Count)
}

func TestEvaluate_ExpiredWindowResetsToOne(t *testing.T) {
	state := State{Exists: true, Counters: Counters{
		WindowUniversal: {Count: 1, ResetAt: t0.Add(time.Hour)},
		WindowMinute:    {Count: 8, ResetAt: t0.Add(-time.Second)},
		WindowHour:      {Count: 1, ResetAt: t0.Add(time.Hour)},
		WindowDay:       {Count: 1, ResetAt: t0.Add(time.Hour)},
	}}

	out := Evaluate(state, DefaultOptions(), t0)

	require.True(t, out.Accepted())
	assert.Equal(t, Counter{Count: 1, ResetAt: t0.Add(5 * time.Minute)}, out.Write[WindowMinute])
}

func TestEvaluate_ResetIsStrictlyAfter(t *testing.T) {
	opts := DefaultOptions()
	opts.MinuteLimit = 1
	state := State{Exists: true, Counters: Counters{
		WindowUniversal: {Count: 0, ResetAt: t0.Add(time.Hour)},
		WindowMinute:    {Count: 1, ResetAt: t0},
		WindowHour:      {Count: 0, ResetAt: t0.Add(time.Hour)},
		WindowDay:       {Count: 0, ResetAt: t0.Add(time.Hour)},
	}}

	out := Evaluate(state, opts, t0)

	require.False(t, out.Accepted())
	assert.Equal(t, WindowMinute, out.Err.Window)
}

func TestEvaluate_RejectionLeavesEarlierWindowsUntouched(t *testing.T) {
	opts := DefaultOptions()
	opts.HourLimit = 2
	state := State{Exists: true, Counters: Counters{
		WindowUniversal: {Count: 5, ResetAt: t0.Add(time.Hour)},
		WindowMinute:    {Count: 1, ResetAt: t0.Add(time.Minute)},
		WindowHour:      {Count: 2, ResetAt: t0.Add(time.Hour)},
		WindowDay:       {Count: 2, ResetAt: t0.Add(time.Hour)},
	}}

	out := Evaluate(state, opts, t0)

	require.False(t, out.Accepted())
	assert.Empty(t, out.Write)
	assert.Equal(t, WindowHour, out.Err.Window)
	assert.Equal(t, "Hour limit reached. Please try again in a few hours.", out.Err.Error())
	assert.ErrorIs(t, out.Err, ErrRateLimitExceeded)
	assert.Equal(t, time.Hour, out.Err.RetryAfter(t0))
}

func TestEvaluate_BackfillsMissingWindows(t *testing.T) {
	state := State{Exists: true, Counters: Counters{
		WindowUniversal: {Count: 7, ResetAt: t0.Add(time.Hour)},
	}}

	out := Evaluate(state, DefaultOptions(), t0)

	require.True(t, out.Accepted())
	assert.Equal(t, int64(8), out.Write[WindowUniversal].Count)
	for _, w := range []Window{WindowMinute, WindowHour, WindowDay} {
		assert.Equal(t, Counter{Count: 1, ResetAt: t0.Add(w.Duration())}, out.Write[w], w)
	}
}

func TestEvaluate_RejectionStillPersistsBackfill(t *testing.T) {
	opts := DefaultOptions()
	opts.WriteLimit = 1
	state := State{Exists: true, Counters: Counters{
		WindowUniversal: {Count: 1, ResetAt: t0.Add(time.Hour)},
	}}

	out := Evaluate(state, opts, t0)

	require.False(t, out.Accepted())
	assert.Equal(t, WindowUniversal, out.Err.Window)
	require.Len(t, out.Write, 3)
	assert.Equal(t, int64(0), out.Write[WindowDay].Count)
}

func TestWindowFields(t *testing.T) {
	assert.Equal(t, "writeCount", WindowUniversal.CountField("favorite"))
	assert.Equal(t, "resetTime", WindowUniversal.ResetField("favorite"))
	assert.Equal(t, "favorite_minuteWriteCount", WindowMinute.CountField("favorite"))
	assert.Equal(t, "favorite_hourResetTime", WindowHour.ResetField("favorite"))
	assert.Equal(t, "favorite_dayWriteCount", WindowDay.CountField("favorite"))
	assert.Equal(t, 12*time.Hour, WindowHour.Duration())
	assert.Equal(t, 5*time.Minute, WindowMinute.Duration())
}

func TestFieldsRoundTripAcceptsJSNumbers(t *testing.T) {
	raw := map[string]any{
		"writeCount":                float64(4),
		"resetTime":                 float64(t0.UnixMilli()),
		"favorite_minuteWriteCount": int64(2),
		"favorite_minuteResetTime":  t0.UnixMilli(),
		"favorite_hourWriteCount":   int64(1),
	}

	c := CountersFromFields("favorite", raw)

	assert.Equal(t, Counter{Count: 4, ResetAt: t0}, c[WindowUniversal])
	assert.Equal(t, Counter{Count: 2, ResetAt: t0}, c[WindowMinute])
	assert.Equal(t, Counter{Count: 1}, c[WindowHour], "count without reset is kept")
	_, hasDay := c[WindowDay]
	assert.False(t, hasDay)

	fields := FieldsFromCounters("favorite", Counters{WindowDay: {Count: 3, ResetAt: t0}})
	assert.Equal(t, map[string]any{
		"favorite_dayWriteCount": int64(3),
		"favorite_dayResetTime":  t0.UnixMilli(),
	}, fields)
}

func TestStateFromFields_MarksHalfStoredWindows(t *testing.T) {
	raw := map[string]any{
		"writeCount":               int64(7),
		"favorite_minuteResetTime": t0.UnixMilli(),
		"favorite_hourWriteCount":  int64(2),
		"favorite_hourResetTime":   t0.UnixMilli(),
	}

	st := StateFromFields("favorite", raw, true)

	require.True(t, st.Exists)
	assert.Equal(t, map[Window]bool{WindowUniversal: true, WindowMinute: true}, st.Incomplete)
	assert.Equal(t, Counter{Count: 0, ResetAt: t0}, st.Counters[WindowMinute])
	assert.Equal(t, State{}, StateFromFields("favorite", raw, false))
}

func TestEvaluate_CountWithoutResetStillLimits(t *testing.T) {
	// writeCount at the limit but resetTime never written
	st := StateFromFields("favorite", map[string]any{"writeCount": int64(100)}, true)

	out := Evaluate(st, DefaultOptions(), t0)

	require.False(t, out.Accepted())
	assert.Equal(t, WindowUniversal, out.Err.Window)
	// the missing reset field is filled, the stored count is not touched
	assert.Equal(t, Counter{Count: 100, ResetAt: t0.Add(time.Hour)}, out.Write[WindowUniversal])
	assert.Equal(t, Counter{Count: 0, ResetAt: t0.Add(5 * time.Minute)}, out.Write[WindowMinute])
	fields := FieldsFromCounters("favorite", out.Write)
	assert.Equal(t, int64(100), fields["writeCount"])
	assert.Equal(t, t0.Add(time.Hour).UnixMilli(), fields["resetTime"])
}

func TestEvaluate_ResetWithoutCountStartsFromZero(t *testing.T) {
	st := StateFromFields("favorite", map[string]any{
		"writeCount":               int64(5),
		"resetTime":                t0.Add(time.Hour).UnixMilli(),
		"favorite_minuteResetTime": t0.Add(time.Minute).UnixMilli(),
		"favorite_hourWriteCount":  int64(3),
		"favorite_hourResetTime":   t0.Add(time.Hour).UnixMilli(),
		"favorite_dayWriteCount":   int64(4),
		"favorite_dayResetTime":    t0.Add(time.Hour).UnixMilli(),
	}, true)

	out := Evaluate(st, DefaultOptions(), t0)

	require.True(t, out.Accepted())
	assert.Equal(t, Counter{Count: 1, ResetAt: t0.Add(time.Minute)}, out.Write[WindowMinute])
	assert.Equal(t, int64(6), out.Write[WindowUniversal].Count)
	assert.Equal(t, int64(4), out.Write[WindowHour].Count)
}

func TestReport_CountWithoutResetIsReported(t *testing.T) {
	st := StateFromFields("favorite", map[string]any{"favorite_dayWriteCount": int64(12)}, true)

	got := Report(st, DefaultOptions(), t0)

	day := got[3]
	require.Equal(t, WindowDay, day.Window)
	assert.Equal(t, int64(12), day.Count)
	assert.Equal(t, t0.Add(24*time.Hour), day.ResetAt)
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{MinuteLimit: 10}.WithDefaults()

	assert.Equal(t, DefaultCollection, o.CollectionName)
	assert.Equal(t, int64(100), o.WriteLimit)
	assert.Equal(t, int64(10), o.MinuteLimit)
	assert.Equal(t, int64(40), o.HourLimit)
	assert.Equal(t, int64(150), o.DayLimit)
	assert.NoError(t, o.Validate())

	bad := o
	bad.CollectionName = "users/../x"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidOptions)
}

func TestNewKey(t *testing.T) {
	k, err := NewKey("usage_metadata", " uid-1 ", "favorite")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", k.UserID)

	_, err = NewKey("usage_metadata", "", "favorite")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewKey("usage_metadata", "uid", "fav.orite")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestReport(t *testing.T) {
	state := State{Exists: true, Counters: Counters{
		WindowUniversal: {Count: 3, ResetAt: t0.Add(time.Hour)},
		WindowMinute:    {Count: 9, ResetAt: t0.Add(-time.Minute)},
	}}

	usages := Report(state, DefaultOptions(), t0)

	require.Len(t, usages, 4)
	assert.Equal(t, int64(3), usages[0].Count)
	assert.Equal(t, int64(97), usages[0].Remaining)
	assert.Equal(t, int64(0), usages[1].Count, "expired window reports zero")
	assert.Equal(t, int64(8), usages[1].Remaining)
}
