// internal/adapters/out/memory/user_profile_memory.go
package memory

import (
	"context"
	"sync"
)

// ProfileStore keeps merged userData patches per user.
type ProfileStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{docs: map[string]map[string]any{}}
}

// MergeUserData merges top-level keys of data into the user's document.
func (p *ProfileStore) MergeUserData(ctx context.Context, userID string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.docs[userID]
	if !ok {
		doc = map[string]any{}
		p.docs[userID] = doc
	}
	for k, v := range data {
		doc[k] = v
	}
	return nil
}

// Profile returns a copy of the user's document.
func (p *ProfileStore) Profile(userID string) map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]any, len(p.docs[userID]))
	for k, v := range p.docs[userID] {
		out[k] = v
	}
	return out
}
