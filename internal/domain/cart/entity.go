// internal/domain/cart/entity.go
package cart

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidCart      = errors.New("cart: invalid")
	ErrInvalidItem      = errors.New("cart: invalid item")
	ErrStoreUnavailable = errors.New("cart: store unavailable")
)

// LineItem is one purchasable variant in a vendor's product map.
// Either ID or ProductID identifies the product; storefront clients have
// written both over time.
type LineItem struct {
	ID            string  `json:"id,omitempty" firestore:"id,omitempty"`
	ProductID     string  `json:"productId,omitempty" firestore:"productId,omitempty"`
	VendorID      string  `json:"vendorId,omitempty" firestore:"vendorId,omitempty"`
	Name          string  `json:"name,omitempty" firestore:"name,omitempty"`
	Price         float64 `json:"price" firestore:"price"`
	Quantity      int     `json:"quantity" firestore:"quantity"`
	SelectedColor string  `json:"selectedColor,omitempty" firestore:"selectedColor,omitempty"`
	SelectedSize  string  `json:"selectedSize,omitempty" firestore:"selectedSize,omitempty"`
	SubProductID  string  `json:"subProductId,omitempty" firestore:"subProductId,omitempty"`
	Variation     string  `json:"variation,omitempty" firestore:"variation,omitempty"`
}

// ProductRef returns productId, falling back to id.
func (it LineItem) ProductRef() string {
	if p := strings.TrimSpace(it.ProductID); p != "" {
		return p
	}
	return strings.TrimSpace(it.ID)
}

// Identity is the composite key that decides whether two items are the same variant.
type Identity struct {
	ProductID    string
	Color        string
	Size         string
	SubProductID string
	Variation    string
}

// Identity returns the 5-field identity of the item.
func (it LineItem) Identity() Identity {
	return Identity{
		ProductID:    it.ProductRef(),
		Color:        strings.TrimSpace(it.SelectedColor),
		Size:         strings.TrimSpace(it.SelectedSize),
		SubProductID: strings.TrimSpace(it.SubProductID),
		Variation:    strings.TrimSpace(it.Variation),
	}
}

// DefaultKey builds the product key the storefront uses for new lines:
// vendorId-productId[-size][-color][-subProductId][-variation].
func DefaultKey(vendorID string, it LineItem) string {
	parts := []string{strings.TrimSpace(vendorID), it.ProductRef()}
	for _, p := range []string{it.SelectedSize, it.SelectedColor, it.SubProductID, it.Variation} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// VendorCart groups one vendor's line items.
type VendorCart struct {
	VendorName string              `json:"vendorName" firestore:"vendorName"`
	Products   map[string]LineItem `json:"products" firestore:"products"`
}

// Cart maps vendorId to that vendor's line items.
type Cart map[string]VendorCart

// Clone deep-copies the vendor and product maps.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for vid, vc := range c {
		products := make(map[string]LineItem, len(vc.Products))
		for k, it := range vc.Products {
			products[k] = it
		}
		out[vid] = VendorCart{VendorName: vc.VendorName, Products: products}
	}
	return out
}

// ItemCount returns the number of line items across all vendors.
func (c Cart) ItemCount() int {
	n := 0
	for _, vc := range c {
		n += len(vc.Products)
	}
	return n
}

// VendorIDs returns the vendor ids in sorted order.
func (c Cart) VendorIDs() []string {
	out := make([]string, 0, len(c))
	for vid := range c {
		out = append(out, vid)
	}
	sort.Strings(out)
	return out
}

// Validate checks the structural invariants of a cart that is about to be
// persisted: every vendor id and key is non-empty, every item identifies a
// product with a positive quantity, and no vendor holds two lines with the
// same identity.
func (c Cart) Validate() error {
	for vid, vc := range c {
		if strings.TrimSpace(vid) == "" {
			return ErrInvalidCart
		}
		seen := make(map[Identity]struct{}, len(vc.Products))
		for k, it := range vc.Products {
			if strings.TrimSpace(k) == "" {
				return ErrInvalidCart
			}
			if it.ProductRef() == "" || it.Quantity <= 0 {
				return ErrInvalidItem
			}
			id := it.Identity()
			if _, dup := seen[id]; dup {
				return ErrInvalidCart
			}
			seen[id] = struct{}{}
		}
	}
	return nil
}

// Normalize trims ids, fills missing vendorId from the map key and drops
// empty vendors. It returns the items that could not be kept.
func (c Cart) Normalize() (Cart, []MalformedLineItem) {
	out := Cart{}
	var dropped []MalformedLineItem
	for _, vid := range c.VendorIDs() {
		vc := c[vid]
		products := map[string]LineItem{}
		for _, k := range sortedKeys(vc.Products) {
			switch v := Classify(vid, k, vc.Products[k]).(type) {
			case ValidLineItem:
				products[v.Key] = v.Item
			case MalformedLineItem:
				dropped = append(dropped, v)
			}
		}
		if len(products) == 0 {
			continue
		}
		out[strings.TrimSpace(vid)] = VendorCart{VendorName: vc.VendorName, Products: products}
	}
	return out, dropped
}

func sortedKeys(m map[string]LineItem) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
