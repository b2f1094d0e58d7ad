// internal/adapters/out/db/cart_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dbcommon "thriftmall/internal/adapters/out/db/common"
	cartdom "thriftmall/internal/domain/cart"
)

// CartRepositoryPG implements cart.Repository with one JSONB row per user.
type CartRepositoryPG struct {
	DB *sql.DB
}

func NewCartRepositoryPG(db *sql.DB) *CartRepositoryPG {
	return &CartRepositoryPG{DB: db}
}

// GetByUserID returns (nil, nil) if not found (nil policy).
func (r *CartRepositoryPG) GetByUserID(ctx context.Context, userID string) (cartdom.Cart, error) {
	if r == nil || r.DB == nil {
		return nil, errors.New("cart_repository_pg: db is nil")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart_repository_pg: userID is empty")
	}

	q := fmt.Sprintf(`SELECT cart FROM %s WHERE user_id = $1`, dbcommon.QuoteTable(DefaultCartTable))
	var body []byte
	err := r.DB.QueryRowContext(ctx, q, uid).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c := cartdom.Cart{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("cart_repository_pg: decode: %w", err)
		}
	}
	return c, nil
}

// Save overwrites the whole row.
func (r *CartRepositoryPG) Save(ctx context.Context, userID string, c cartdom.Cart) error {
	if r == nil || r.DB == nil {
		return errors.New("cart_repository_pg: db is nil")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart_repository_pg: userID is empty")
	}
	if c == nil {
		c = cartdom.Cart{}
	}
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
INSERT INTO %s (user_id, cart, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (user_id) DO UPDATE SET cart = EXCLUDED.cart, updated_at = now()
`, dbcommon.QuoteTable(DefaultCartTable))
	_, err = r.DB.ExecContext(ctx, q, uid, string(body))
	return err
}

func (r *CartRepositoryPG) DeleteByUserID(ctx context.Context, userID string) error {
	if r == nil || r.DB == nil {
		return errors.New("cart_repository_pg: db is nil")
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, dbcommon.QuoteTable(DefaultCartTable))
	_, err := r.DB.ExecContext(ctx, q, strings.TrimSpace(userID))
	return err
}
