// internal/domain/cart/repository_port.go
package cart

import "context"

// Repository is a persistence port for carts.
//
// Storage (Firestore):
// - collection: carts
// - docId: userId
// - fields: cart (map vendorId -> {vendorName, products}), updatedAt
type Repository interface {
	// GetByUserID returns the stored cart, or (nil, nil) when none exists.
	GetByUserID(ctx context.Context, userID string) (Cart, error)

	// Save overwrites the whole cart document.
	Save(ctx context.Context, userID string, c Cart) error

	// DeleteByUserID removes the cart document.
	DeleteByUserID(ctx context.Context, userID string) error
}
