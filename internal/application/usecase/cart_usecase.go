// internal/application/usecase/cart_usecase.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	cartdom "thriftmall/internal/domain/cart"
)

var (
	ErrCartInvalidArgument = errors.New("cart_usecase: invalid argument")
	ErrCartNotFound        = errors.New("cart_usecase: not found")
)

// CartUsecase coordinates cart operations.
type CartUsecase struct {
	repo cartdom.Repository
	obs  MergeObserver
}

func NewCartUsecase(repo cartdom.Repository, obs MergeObserver) *CartUsecase {
	if obs == nil {
		obs = nopObserver{}
	}
	return &CartUsecase{repo: repo, obs: obs}
}

// MergeOutcome is the result of FetchAndMerge.
// ClearLocal is true only when the merged cart was persisted, so the caller
// may drop its device-local copy.
type MergeOutcome struct {
	cartdom.MergeResult
	ClearLocal bool `json:"clearLocal"`
}

// Get returns the cart for userID. An absent cart is returned as empty.
func (uc *CartUsecase) Get(ctx context.Context, userID string) (cartdom.Cart, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, ErrCartInvalidArgument
	}
	return uc.load(ctx, uid)
}

// FetchAndMerge loads the remote cart, merges local on top of it and
// overwrites the remote document with the result.
//
// On a failed write the merge result is still returned together with the
// error and ClearLocal=false.
func (uc *CartUsecase) FetchAndMerge(ctx context.Context, userID string, local cartdom.Cart) (MergeOutcome, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return MergeOutcome{}, ErrCartInvalidArgument
	}

	remote, err := uc.load(ctx, uid)
	if err != nil {
		return MergeOutcome{}, err
	}

	res := cartdom.Merge(remote, local)
	for _, d := range res.Dropped {
		log.Printf("[cart_usecase] dropped malformed item uid=%s vendor=%s key=%q reason=%s",
			_mask(uid), d.VendorID, d.Key, d.Reason)
	}
	uc.obs.ObserveMerge(res)

	if err := uc.save(ctx, uid, res.Merged); err != nil {
		return MergeOutcome{MergeResult: res}, err
	}

	log.Printf("[cart_usecase] merged uid=%s vendors=%d items=%d conflicts=%d dropped=%d",
		_mask(uid), len(res.Merged), res.Merged.ItemCount(), len(res.Conflicts), len(res.Dropped))
	return MergeOutcome{MergeResult: res, ClearLocal: true}, nil
}

// Replace overwrites the cart with c after normalizing it.
// Items that cannot be kept are returned.
func (uc *CartUsecase) Replace(ctx context.Context, userID string, c cartdom.Cart) (cartdom.Cart, []cartdom.MalformedLineItem, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, nil, ErrCartInvalidArgument
	}

	normalized, dropped := c.Normalize()
	if err := normalized.Validate(); err != nil {
		return nil, dropped, fmt.Errorf("%w: %w", ErrCartInvalidArgument, err)
	}
	if err := uc.save(ctx, uid, normalized); err != nil {
		return nil, dropped, err
	}
	return normalized, dropped, nil
}

// AddItem adds it to vendorID's products. A line with the same identity has
// its quantity summed. The key the item landed under is returned.
func (uc *CartUsecase) AddItem(ctx context.Context, userID, vendorID, vendorName string, it cartdom.LineItem) (cartdom.Cart, string, error) {
	uid := strings.TrimSpace(userID)
	vid := strings.TrimSpace(vendorID)
	if uid == "" || vid == "" || it.ProductRef() == "" {
		return nil, "", ErrCartInvalidArgument
	}

	c, err := uc.load(ctx, uid)
	if err != nil {
		return nil, "", err
	}

	next, key, err := cartdom.AddLine(c, vid, vendorName, it)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrCartInvalidArgument, err)
	}
	if err := uc.save(ctx, uid, next); err != nil {
		return nil, "", err
	}
	return next, key, nil
}

// SetItemQty sets qty for the line stored under key.
// If qty <= 0, it removes the line (and the vendor when it becomes empty).
func (uc *CartUsecase) SetItemQty(ctx context.Context, userID, vendorID, key string, qty int) (cartdom.Cart, error) {
	uid := strings.TrimSpace(userID)
	vid := strings.TrimSpace(vendorID)
	k := strings.TrimSpace(key)
	if uid == "" || vid == "" || k == "" {
		return nil, ErrCartInvalidArgument
	}

	c, err := uc.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	vc, ok := c[vid]
	if !ok {
		return nil, ErrCartNotFound
	}
	it, ok := vc.Products[k]
	if !ok {
		return nil, ErrCartNotFound
	}

	next := c.Clone()
	if qty <= 0 {
		delete(next[vid].Products, k)
		if len(next[vid].Products) == 0 {
			delete(next, vid)
		}
	} else {
		it.Quantity = qty
		next[vid].Products[k] = it
	}

	if err := uc.save(ctx, uid, next); err != nil {
		return nil, err
	}
	return next, nil
}

// RemoveItem removes the line stored under key.
func (uc *CartUsecase) RemoveItem(ctx context.Context, userID, vendorID, key string) (cartdom.Cart, error) {
	return uc.SetItemQty(ctx, userID, vendorID, key, 0)
}

// Clear deletes the cart doc.
func (uc *CartUsecase) Clear(ctx context.Context, userID string) error {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidArgument
	}
	if err := uc.repo.DeleteByUserID(ctx, uid); err != nil {
		log.Printf("[cart_usecase] clear failed uid=%s err=%v", _mask(uid), err)
		return cartStoreErr("clear", err)
	}
	return nil
}

func (uc *CartUsecase) load(ctx context.Context, uid string) (cartdom.Cart, error) {
	if uc == nil || uc.repo == nil {
		return nil, cartdom.ErrStoreUnavailable
	}
	c, err := uc.repo.GetByUserID(ctx, uid)
	if err != nil {
		log.Printf("[cart_usecase] load failed uid=%s err=%v", _mask(uid), err)
		return nil, cartStoreErr("load", err)
	}
	if c == nil {
		return cartdom.Cart{}, nil
	}
	return c, nil
}

func (uc *CartUsecase) save(ctx context.Context, uid string, c cartdom.Cart) error {
	if uc == nil || uc.repo == nil {
		return cartdom.ErrStoreUnavailable
	}
	if err := uc.repo.Save(ctx, uid, c); err != nil {
		log.Printf("[cart_usecase] save failed uid=%s err=%v", _mask(uid), err)
		return cartStoreErr("save", err)
	}
	return nil
}

func cartStoreErr(op string, err error) error {
	if errors.Is(err, cartdom.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("cart_usecase: %s: %w: %w", op, cartdom.ErrStoreUnavailable, err)
}
