// internal/adapters/out/db/user_profile_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dbcommon "thriftmall/internal/adapters/out/db/common"
)

// UserProfileRepositoryPG merges userData patches into a JSONB document.
type UserProfileRepositoryPG struct {
	DB *sql.DB
}

func NewUserProfileRepositoryPG(db *sql.DB) *UserProfileRepositoryPG {
	return &UserProfileRepositoryPG{DB: db}
}

func (r *UserProfileRepositoryPG) MergeUserData(ctx context.Context, userID string, data map[string]any) error {
	if r == nil || r.DB == nil {
		return errors.New("user_profile_repository_pg: db is nil")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("user_profile_repository_pg: userID is empty")
	}
	if len(data) == 0 {
		return nil
	}
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
INSERT INTO %[1]s (user_id, data, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (user_id) DO UPDATE SET data = %[1]s.data || EXCLUDED.data, updated_at = now()
`, dbcommon.QuoteTable(DefaultProfileTable))
	_, err = r.DB.ExecContext(ctx, q, uid, string(body))
	return err
}
