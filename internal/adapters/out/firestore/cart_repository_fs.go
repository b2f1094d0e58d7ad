// internal/adapters/out/firestore/cart_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	cartdom "thriftmall/internal/domain/cart"
)

// CartRepositoryFS implements cart.Repository using Firestore.
//
// Collection design:
// - collection: carts
// - docId: userId
// - fields: cart (map vendorId -> {vendorName, products}), updatedAt
type CartRepositoryFS struct {
	Client *firestore.Client
}

func NewCartRepositoryFS(client *firestore.Client) *CartRepositoryFS {
	return &CartRepositoryFS{Client: client}
}

func (r *CartRepositoryFS) col() *firestore.CollectionRef {
	return r.Client.Collection("carts")
}

// GetByUserID returns (nil, nil) if not found (nil policy).
func (r *CartRepositoryFS) GetByUserID(ctx context.Context, userID string) (cartdom.Cart, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("cart_repository_fs: firestore client is nil")
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart_repository_fs: userID is empty")
	}

	snap, err := r.col().Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}

	// snap.Data() を自前パースする。
	// 古いクライアントは quantity/price を文字列や float で書いていることがある。
	return cartFromData(snap.Data()), nil
}

// Save overwrites the full doc.
func (r *CartRepositoryFS) Save(ctx context.Context, userID string, c cartdom.Cart) error {
	if r == nil || r.Client == nil {
		return errors.New("cart_repository_fs: firestore client is nil")
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart_repository_fs: userID is empty")
	}

	_, err := r.col().Doc(uid).Set(ctx, cartDocFromDomain(c))
	return err
}

func (r *CartRepositoryFS) DeleteByUserID(ctx context.Context, userID string) error {
	if r == nil || r.Client == nil {
		return errors.New("cart_repository_fs: firestore client is nil")
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart_repository_fs: userID is empty")
	}

	_, err := r.col().Doc(uid).Delete(ctx)
	return err
}

// -----------------------------------------
// Firestore DTO
// -----------------------------------------

type cartDoc struct {
	Cart      map[string]vendorCartDoc `firestore:"cart"`
	UpdatedAt time.Time                `firestore:"updatedAt,serverTimestamp"`
}

type vendorCartDoc struct {
	VendorName string                 `firestore:"vendorName"`
	Products   map[string]lineItemDoc `firestore:"products"`
}

type lineItemDoc struct {
	ID            string  `firestore:"id,omitempty"`
	ProductID     string  `firestore:"productId,omitempty"`
	VendorID      string  `firestore:"vendorId,omitempty"`
	Name          string  `firestore:"name,omitempty"`
	Price         float64 `firestore:"price"`
	Quantity      int     `firestore:"quantity"`
	SelectedColor string  `firestore:"selectedColor,omitempty"`
	SelectedSize  string  `firestore:"selectedSize,omitempty"`
	SubProductID  string  `firestore:"subProductId,omitempty"`
	Variation     string  `firestore:"variation,omitempty"`
}

func cartDocFromDomain(c cartdom.Cart) cartDoc {
	out := cartDoc{Cart: make(map[string]vendorCartDoc, len(c))}
	for vid, vc := range c {
		products := make(map[string]lineItemDoc, len(vc.Products))
		for k, it := range vc.Products {
			products[k] = lineItemDoc(it)
		}
		out.Cart[vid] = vendorCartDoc{VendorName: vc.VendorName, Products: products}
	}
	return out
}

// cartFromData parses the raw document. Vendors and items that are not maps
// are skipped; item validity is decided later by the merge.
func cartFromData(raw map[string]any) cartdom.Cart {
	out := cartdom.Cart{}
	if raw == nil {
		return out
	}
	vendors, ok := raw["cart"].(map[string]any)
	if !ok {
		return out
	}

	for vid, v := range vendors {
		vm, ok := v.(map[string]any)
		if !ok || strings.TrimSpace(vid) == "" {
			continue
		}
		vc := cartdom.VendorCart{
			VendorName: asString(vm["vendorName"]),
			Products:   map[string]cartdom.LineItem{},
		}
		products, _ := vm["products"].(map[string]any)
		for k, pv := range products {
			pm, ok := pv.(map[string]any)
			if !ok {
				continue
			}
			vc.Products[k] = lineItemFromMap(pm)
		}
		out[vid] = vc
	}
	return out
}

func lineItemFromMap(m map[string]any) cartdom.LineItem {
	return cartdom.LineItem{
		ID:            strings.TrimSpace(asString(m["id"])),
		ProductID:     strings.TrimSpace(asString(m["productId"])),
		VendorID:      strings.TrimSpace(asString(m["vendorId"])),
		Name:          asString(m["name"]),
		Price:         asFloat(m["price"]),
		Quantity:      asInt(m["quantity"]),
		SelectedColor: asString(m["selectedColor"]),
		SelectedSize:  asString(m["selectedSize"]),
		SubProductID:  asString(m["subProductId"]),
		Variation:     asString(m["variation"]),
	}
}
