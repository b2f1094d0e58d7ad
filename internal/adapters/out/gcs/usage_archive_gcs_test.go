package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rl "thriftmall/internal/domain/ratelimit"
)

type fakeObjectWriter struct {
	ctx      context.Context
	buf      bytes.Buffer
	writeErr error

	closed     bool
	ctxAtClose error
}

func (w *fakeObjectWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return w.buf.Write(p)
}

func (w *fakeObjectWriter) Close() error {
	w.closed = true
	w.ctxAtClose = w.ctx.Err()
	return nil
}

func newFakeArchive(w *fakeObjectWriter, opened *[]string) *UsageArchiveGCS {
	a := NewUsageArchiveGCS(nil, "bucket", "usage")
	a.open = func(ctx context.Context, object string, meta map[string]string) io.WriteCloser {
		w.ctx = ctx
		*opened = append(*opened, object)
		return w
	}
	return a
}

var archiveCutoff = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func TestUsageArchivePut_WritesJSONLines(t *testing.T) {
	w := &fakeObjectWriter{}
	var opened []string
	a := newFakeArchive(w, &opened)

	err := a.Put(t.Context(), "usage_metadata", archiveCutoff, []rl.Record{
		{UserID: "u1", Fields: map[string]any{"writeCount": 3}},
		{UserID: "u2", Fields: map[string]any{"writeCount": 1}},
	})

	require.NoError(t, err)
	require.Len(t, opened, 1)
	assert.True(t, w.closed)
	assert.NoError(t, w.ctxAtClose)
	assert.Equal(t, 2, bytes.Count(w.buf.Bytes(), []byte("\n")))
}

func TestUsageArchivePut_EncodeFailureCreatesNoObject(t *testing.T) {
	w := &fakeObjectWriter{}
	var opened []string
	a := newFakeArchive(w, &opened)

	err := a.Put(t.Context(), "usage_metadata", archiveCutoff, []rl.Record{
		{UserID: "u1", Fields: map[string]any{"writeCount": 3}},
		{UserID: "u2", Fields: map[string]any{"bad": math.Inf(1)}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode u2")
	assert.Empty(t, opened)
	assert.False(t, w.closed)
}

func TestUsageArchivePut_WriteFailureCancelsUpload(t *testing.T) {
	w := &fakeObjectWriter{writeErr: errors.New("connection reset")}
	var opened []string
	a := newFakeArchive(w, &opened)

	err := a.Put(t.Context(), "usage_metadata", archiveCutoff, []rl.Record{
		{UserID: "u1", Fields: map[string]any{"writeCount": 3}},
	})

	require.Error(t, err)
	require.True(t, w.closed)
	assert.ErrorIs(t, w.ctxAtClose, context.Canceled)
}
