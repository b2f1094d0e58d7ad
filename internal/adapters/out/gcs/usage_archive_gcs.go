// internal/adapters/out/gcs/usage_archive_gcs.go
package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	rl "thriftmall/internal/domain/ratelimit"
)

// UsageArchiveGCS writes swept usage records to a bucket as JSON Lines.
//
// Object layout:
// - {prefix}/{collection}/{cutoff yyyyMMddTHHmmssZ}-{objectId}.jsonl
// - one ratelimit.Record per line
type UsageArchiveGCS struct {
	Client *storage.Client
	Bucket string
	Prefix string

	// open overrides object creation in tests.
	open func(ctx context.Context, object string, meta map[string]string) io.WriteCloser
}

func NewUsageArchiveGCS(client *storage.Client, bucket, prefix string) *UsageArchiveGCS {
	return &UsageArchiveGCS{
		Client: client,
		Bucket: strings.TrimSpace(bucket),
		Prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

// Put uploads recs as one object. Nothing is created when a record fails to
// encode, and a failed upload is cancelled rather than finalized.
func (a *UsageArchiveGCS) Put(ctx context.Context, collection string, before time.Time, recs []rl.Record) error {
	if a == nil || (a.Client == nil && a.open == nil) {
		return errors.New("usage_archive_gcs: storage client is nil")
	}
	if a.Bucket == "" {
		return errors.New("usage_archive_gcs: bucket is empty")
	}
	if len(recs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("usage_archive_gcs: encode %s: %w", r.UserID, err)
		}
	}

	obj := a.ObjectPath(collection, before)
	meta := map[string]string{
		"collection": collection,
		"cutoff":     before.UTC().Format(time.RFC3339),
		"records":    strconv.Itoa(len(recs)),
	}

	// cancelling the writer's context aborts the upload
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := a.writer(ctx, obj, meta)
	if _, err := w.Write(buf.Bytes()); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("usage_archive_gcs: write gs://%s/%s: %w", a.Bucket, obj, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("usage_archive_gcs: write gs://%s/%s: %w", a.Bucket, obj, err)
	}
	return nil
}

func (a *UsageArchiveGCS) writer(ctx context.Context, obj string, meta map[string]string) io.WriteCloser {
	if a.open != nil {
		return a.open(ctx, obj, meta)
	}
	w := a.Client.Bucket(a.Bucket).Object(obj).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	w.ChunkSize = 0
	w.Metadata = meta
	return w
}

// ObjectPath returns where records of collection swept at before are written.
func (a *UsageArchiveGCS) ObjectPath(collection string, before time.Time) string {
	name := before.UTC().Format("20060102T150405Z") + "-" + newObjectID() + ".jsonl"
	return path.Join(a.Prefix, sanitizePathSegment(collection), name)
}
