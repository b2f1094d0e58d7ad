// internal/adapters/out/memory/ratelimit_store_memory.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	rl "thriftmall/internal/domain/ratelimit"
)

// RateLimitStore is an in-memory ratelimit.Store.
// Records are kept in the same field layout as the document store so that
// the encoding path is shared. It is safe for concurrent use; one mutex
// serializes every Apply.
type RateLimitStore struct {
	mu   sync.Mutex
	data map[string]map[string]map[string]any // collection -> userId -> fields

	// Now stamps lastWrite. Defaults to time.Now.
	Now func() time.Time
	// Fail, when set, is consulted before every operation ("apply", "get",
	// "delete", "sweep", "list"); a non-nil result is returned as the error.
	Fail func(op string) error
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{data: map[string]map[string]map[string]any{}}
}

func (s *RateLimitStore) Apply(ctx context.Context, key rl.Key, fn func(rl.State) rl.Outcome) (rl.Outcome, error) {
	if err := s.check(ctx, "apply"); err != nil {
		return rl.Outcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, exists := s.data[key.Collection][key.UserID]
	out := fn(rl.StateFromFields(key.Action, raw, exists))

	patch := rl.FieldsFromCounters(key.Action, out.Write)
	if out.Accepted() {
		patch[rl.LastWriteField] = s.now()
	}
	if len(patch) == 0 {
		return out, nil
	}

	col, ok := s.data[key.Collection]
	if !ok {
		col = map[string]map[string]any{}
		s.data[key.Collection] = col
	}
	rec, ok := col[key.UserID]
	if !ok {
		rec = map[string]any{}
		col[key.UserID] = rec
	}
	for k, v := range patch {
		rec[k] = v
	}
	return out, nil
}

func (s *RateLimitStore) Get(ctx context.Context, key rl.Key) (rl.State, error) {
	if err := s.check(ctx, "get"); err != nil {
		return rl.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, exists := s.data[key.Collection][key.UserID]
	return rl.StateFromFields(key.Action, raw, exists), nil
}

func (s *RateLimitStore) Delete(ctx context.Context, collection, userID string) error {
	if err := s.check(ctx, "delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[collection], userID)
	return nil
}

// DeleteStale removes records whose lastWrite is before the cutoff.
// Records that never accepted an action have no lastWrite and are kept.
func (s *RateLimitStore) DeleteStale(ctx context.Context, collection string, before time.Time) (int, error) {
	if err := s.check(ctx, "sweep"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for uid, raw := range s.data[collection] {
		lw, ok := rl.LastWriteFromFields(raw)
		if ok && lw.Before(before) {
			delete(s.data[collection], uid)
			n++
		}
	}
	return n, nil
}

// ListStale returns copies of the records DeleteStale would remove.
func (s *RateLimitStore) ListStale(ctx context.Context, collection string, before time.Time) ([]rl.Record, error) {
	if err := s.check(ctx, "list"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []rl.Record
	for uid, raw := range s.data[collection] {
		lw, ok := rl.LastWriteFromFields(raw)
		if !ok || !lw.Before(before) {
			continue
		}
		out = append(out, rl.Record{UserID: uid, Fields: copyFields(raw)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Fields returns a copy of the raw record (for tests and usagectl).
func (s *RateLimitStore) Fields(collection, userID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.data[collection][userID]
	if !ok {
		return nil, false
	}
	return copyFields(raw), true
}

func copyFields(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}

// Put seeds a raw record, replacing any existing one.
func (s *RateLimitStore) Put(collection, userID string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.data[collection]
	if !ok {
		col = map[string]map[string]any{}
		s.data[collection] = col
	}
	rec := make(map[string]any, len(fields))
	for k, v := range fields {
		rec[k] = v
	}
	col[userID] = rec
}

func (s *RateLimitStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RateLimitStore) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Fail != nil {
		return s.Fail(op)
	}
	return nil
}
