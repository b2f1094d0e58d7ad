// internal/application/usecase/ratelimit_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	rl "thriftmall/internal/domain/ratelimit"
)

// ProfileWriter merges a partial patch into users/{userId}.
type ProfileWriter interface {
	MergeUserData(ctx context.Context, userID string, data map[string]any) error
}

// UserActionLimiter throttles user write actions with four fixed windows
// kept on one usage record per user.
type UserActionLimiter struct {
	store    rl.Store
	profiles ProfileWriter
	clock    Clock
	obs      ThrottleObserver
	archive  rl.Archive
}

func NewUserActionLimiter(store rl.Store, profiles ProfileWriter, obs ThrottleObserver) *UserActionLimiter {
	return NewUserActionLimiterWithClock(store, profiles, obs, nil)
}

// NewUserActionLimiterWithClock is useful for tests.
func NewUserActionLimiterWithClock(store rl.Store, profiles ProfileWriter, obs ThrottleObserver, clock Clock) *UserActionLimiter {
	if clock == nil {
		clock = systemClock{}
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &UserActionLimiter{store: store, profiles: profiles, clock: clock, obs: obs}
}

// SetArchive makes Sweep copy stale records to a before deleting them.
// The store must implement ratelimit.StaleLister.
func (uc *UserActionLimiter) SetArchive(a rl.Archive) {
	if uc != nil {
		uc.archive = a
	}
}

// Attempt counts one action of userID against every window.
//
// It returns nil when the action may proceed, a *ratelimit.LimitError when a
// window is exhausted, and an error wrapping ratelimit.ErrStoreUnavailable
// when the record could not be read or written. userData is merged into the
// user's profile only after the action was accepted.
func (uc *UserActionLimiter) Attempt(ctx context.Context, userID, action string, opts rl.Options, userData map[string]any) error {
	if uc == nil || uc.store == nil {
		return rl.ErrStoreUnavailable
	}

	o := opts.WithDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	key, err := rl.NewKey(o.CollectionName, userID, action)
	if err != nil {
		return err
	}

	now := uc.clock.Now()
	out, err := uc.store.Apply(ctx, key, func(st rl.State) rl.Outcome {
		return rl.Evaluate(st, o, now)
	})
	if err != nil {
		uc.obs.ObserveDecision(key.Action, "", "error")
		log.Printf("[ratelimit] apply failed uid=%s action=%s err=%v", _mask(key.UserID), key.Action, err)
		return storeErr("apply", err)
	}

	if !out.Accepted() {
		uc.obs.ObserveDecision(key.Action, string(out.Err.Window), "rejected")
		log.Printf("[ratelimit] rejected uid=%s action=%s window=%s count=%d limit=%d",
			_mask(key.UserID), key.Action, out.Err.Window, out.Err.Count, out.Err.Limit)
		return out.Err
	}
	uc.obs.ObserveDecision(key.Action, "", "accepted")

	if len(userData) > 0 && uc.profiles != nil {
		if err := uc.profiles.MergeUserData(ctx, key.UserID, userData); err != nil {
			log.Printf("[ratelimit] userData merge failed uid=%s err=%v", _mask(key.UserID), err)
			return storeErr("merge userData", err)
		}
	}
	return nil
}

// Usage reports the current windows of action without counting anything.
func (uc *UserActionLimiter) Usage(ctx context.Context, userID, action string, opts rl.Options) ([]rl.Usage, error) {
	if uc == nil || uc.store == nil {
		return nil, rl.ErrStoreUnavailable
	}
	o := opts.WithDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}
	key, err := rl.NewKey(o.CollectionName, userID, action)
	if err != nil {
		return nil, err
	}

	st, err := uc.store.Get(ctx, key)
	if err != nil {
		return nil, storeErr("get", err)
	}
	return rl.Report(st, o, uc.clock.Now()), nil
}

// Reset deletes the user's usage record in collection ("" = default).
func (uc *UserActionLimiter) Reset(ctx context.Context, userID, collection string) error {
	if uc == nil || uc.store == nil {
		return rl.ErrStoreUnavailable
	}
	col := rl.Options{CollectionName: collection}.WithDefaults().CollectionName
	// action is irrelevant for deletion; NewKey is used for id validation only.
	key, err := rl.NewKey(col, userID, "reset")
	if err != nil {
		return err
	}
	if err := uc.store.Delete(ctx, key.Collection, key.UserID); err != nil {
		return storeErr("delete", err)
	}
	log.Printf("[ratelimit] reset uid=%s collection=%s", _mask(key.UserID), key.Collection)
	return nil
}

// Sweep deletes records untouched since before, across the given
// collections in parallel. With no collections the default is swept.
func (uc *UserActionLimiter) Sweep(ctx context.Context, before time.Time, collections ...string) (int, error) {
	if uc == nil || uc.store == nil {
		return 0, rl.ErrStoreUnavailable
	}
	if len(collections) == 0 {
		collections = []string{rl.DefaultCollection}
	}

	cols := make([]string, 0, len(collections))
	for _, c := range collections {
		o := rl.Options{CollectionName: strings.TrimSpace(c)}.WithDefaults()
		if err := o.Validate(); err != nil {
			return 0, err
		}
		cols = append(cols, o.CollectionName)
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, col := range cols {
		g.Go(func() error {
			if err := uc.archiveStale(gctx, col, before); err != nil {
				return fmt.Errorf("collection %s: archive: %w", col, err)
			}
			n, err := uc.store.DeleteStale(gctx, col, before)
			total.Add(int64(n))
			if err != nil {
				return fmt.Errorf("collection %s: %w", col, err)
			}
			log.Printf("[ratelimit] sweep collection=%s before=%s deleted=%d", col, before.UTC().Format(time.RFC3339), n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(total.Load()), storeErr("sweep", err)
	}
	return int(total.Load()), nil
}

func (uc *UserActionLimiter) archiveStale(ctx context.Context, col string, before time.Time) error {
	if uc.archive == nil {
		return nil
	}
	lister, ok := uc.store.(rl.StaleLister)
	if !ok {
		return fmt.Errorf("store %T cannot list records", uc.store)
	}
	recs, err := lister.ListStale(ctx, col, before)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	if err := uc.archive.Put(ctx, col, before, recs); err != nil {
		return err
	}
	log.Printf("[ratelimit] archived collection=%s records=%d", col, len(recs))
	return nil
}

func storeErr(op string, err error) error {
	if errors.Is(err, rl.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("ratelimit: %s: %w: %w", op, rl.ErrStoreUnavailable, err)
}
