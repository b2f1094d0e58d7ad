// internal/adapters/out/firestore/ratelimit_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	rl "thriftmall/internal/domain/ratelimit"
)

// RateLimitRepositoryFS implements ratelimit.Store using Firestore.
//
// Collection design:
// - collection: Options.CollectionName (default "usage_metadata")
// - docId: userId
// - fields: writeCount, resetTime, {action}_{window}WriteCount,
//   {action}_{window}ResetTime (ms epoch), lastWrite (server timestamp)
type RateLimitRepositoryFS struct {
	Client *firestore.Client
}

func NewRateLimitRepositoryFS(client *firestore.Client) *RateLimitRepositoryFS {
	return &RateLimitRepositoryFS{Client: client}
}

var errRateLimitClientNil = errors.New("ratelimit_repository_fs: firestore client is nil")

// Apply runs read, evaluation and write in one transaction.
// Firestore retries the transaction on contention, so fn may run again
// with a fresher snapshot.
func (r *RateLimitRepositoryFS) Apply(ctx context.Context, key rl.Key, fn func(rl.State) rl.Outcome) (rl.Outcome, error) {
	if r == nil || r.Client == nil {
		return rl.Outcome{}, errRateLimitClientNil
	}
	ref := r.Client.Collection(key.Collection).Doc(key.UserID)

	var out rl.Outcome
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		st := rl.State{}
		if snap != nil && snap.Exists() {
			st = rl.StateFromFields(key.Action, snap.Data(), true)
		}

		out = fn(st)

		patch := rl.FieldsFromCounters(key.Action, out.Write)
		if out.Accepted() {
			patch[rl.LastWriteField] = firestore.ServerTimestamp
		}
		if len(patch) == 0 {
			return nil
		}
		return tx.Set(ref, patch, firestore.MergeAll)
	})
	if err != nil {
		return rl.Outcome{}, err
	}
	return out, nil
}

func (r *RateLimitRepositoryFS) Get(ctx context.Context, key rl.Key) (rl.State, error) {
	if r == nil || r.Client == nil {
		return rl.State{}, errRateLimitClientNil
	}

	snap, err := r.Client.Collection(key.Collection).Doc(key.UserID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return rl.State{}, nil
		}
		return rl.State{}, err
	}
	return rl.StateFromFields(key.Action, snap.Data(), true), nil
}

// Fields returns the raw record (nil when absent). Used by usagectl inspect.
func (r *RateLimitRepositoryFS) Fields(ctx context.Context, collection, userID string) (map[string]any, error) {
	if r == nil || r.Client == nil {
		return nil, errRateLimitClientNil
	}
	snap, err := r.Client.Collection(strings.TrimSpace(collection)).Doc(strings.TrimSpace(userID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return snap.Data(), nil
}

func (r *RateLimitRepositoryFS) Delete(ctx context.Context, collection, userID string) error {
	if r == nil || r.Client == nil {
		return errRateLimitClientNil
	}
	_, err := r.Client.Collection(collection).Doc(userID).Delete(ctx)
	return err
}

// ListStale reads every record whose lastWrite is before the cutoff.
func (r *RateLimitRepositoryFS) ListStale(ctx context.Context, collection string, before time.Time) ([]rl.Record, error) {
	if r == nil || r.Client == nil {
		return nil, errRateLimitClientNil
	}

	it := r.Client.Collection(collection).
		Where(rl.LastWriteField, "<", before).
		Documents(ctx)
	defer it.Stop()

	var out []rl.Record
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rl.Record{UserID: snap.Ref.ID, Fields: snap.Data()})
	}
	return out, nil
}

// DeleteStale deletes every record whose lastWrite is before the cutoff.
// Documents without lastWrite are not matched by the query and stay.
func (r *RateLimitRepositoryFS) DeleteStale(ctx context.Context, collection string, before time.Time) (int, error) {
	if r == nil || r.Client == nil {
		return 0, errRateLimitClientNil
	}

	it := r.Client.Collection(collection).
		Where(rl.LastWriteField, "<", before).
		Select().
		Documents(ctx)
	defer it.Stop()

	bw := r.Client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, err
		}
		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return 0, err
		}
		jobs = append(jobs, job)
	}
	bw.End()

	n := 0
	var firstErr error
	for _, j := range jobs {
		if _, err := j.Results(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		n++
	}
	return n, firstErr
}
