// internal/adapters/out/memory/cart_repository_memory.go
package memory

import (
	"context"
	"strings"
	"sync"

	cartdom "thriftmall/internal/domain/cart"
)

// CartRepository is an in-memory cart.Repository.
type CartRepository struct {
	mu    sync.RWMutex
	carts map[string]cartdom.Cart

	// Fail, when set, is consulted before every operation ("get", "save",
	// "delete"); a non-nil result is returned as the error.
	Fail func(op string) error
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: map[string]cartdom.Cart{}}
}

func (r *CartRepository) GetByUserID(ctx context.Context, userID string) (cartdom.Cart, error) {
	if err := r.check(ctx, "get"); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.carts[strings.TrimSpace(userID)]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (r *CartRepository) Save(ctx context.Context, userID string, c cartdom.Cart) error {
	if err := r.check(ctx, "save"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.carts[strings.TrimSpace(userID)] = c.Clone()
	return nil
}

func (r *CartRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if err := r.check(ctx, "delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, strings.TrimSpace(userID))
	return nil
}

func (r *CartRepository) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Fail != nil {
		return r.Fail(op)
	}
	return nil
}
