// internal/adapters/out/db/ratelimit_repository_pg.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dbcommon "thriftmall/internal/adapters/out/db/common"
	rl "thriftmall/internal/domain/ratelimit"
)

// RateLimitRepositoryPG implements ratelimit.Store on PostgreSQL.
//
// One row per (collection, user_id). Counter fields are kept in a JSONB
// column with the same names the document store uses, so records can be
// moved between backends unchanged.
type RateLimitRepositoryPG struct {
	DB    *sql.DB
	Table string

	// MaxRetries bounds re-runs after serialization failures or a lost
	// insert race. Zero means 3.
	MaxRetries int
}

func NewRateLimitRepositoryPG(db *sql.DB) *RateLimitRepositoryPG {
	return &RateLimitRepositoryPG{DB: db, Table: DefaultUsageTable}
}

var (
	errRateLimitDBNil = errors.New("ratelimit_repository_pg: db is nil")
	errInsertRace     = errors.New("ratelimit_repository_pg: concurrent insert")
)

func (r *RateLimitRepositoryPG) table() string {
	t := strings.TrimSpace(r.Table)
	if t == "" {
		t = DefaultUsageTable
	}
	return dbcommon.QuoteTable(t)
}

// Apply locks the row with SELECT ... FOR UPDATE, evaluates and writes in
// one transaction. A missing row is inserted; if another caller inserts it
// first the whole transaction is re-run against the new row.
func (r *RateLimitRepositoryPG) Apply(ctx context.Context, key rl.Key, fn func(rl.State) rl.Outcome) (rl.Outcome, error) {
	if r == nil || r.DB == nil {
		return rl.Outcome{}, errRateLimitDBNil
	}

	attempts := r.MaxRetries
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		out, err := r.applyOnce(ctx, key, fn)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, errInsertRace) && !dbcommon.IsRetryable(err) {
			return rl.Outcome{}, err
		}
		lastErr = err
	}
	return rl.Outcome{}, fmt.Errorf("ratelimit_repository_pg: gave up after %d attempts: %w", attempts, lastErr)
}

func (r *RateLimitRepositoryPG) applyOnce(ctx context.Context, key rl.Key, fn func(rl.State) rl.Outcome) (rl.Outcome, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return rl.Outcome{}, err
	}
	defer tx.Rollback()

	raw, exists, err := r.selectFields(ctx, tx, key.Collection, key.UserID, true)
	if err != nil {
		return rl.Outcome{}, err
	}

	out := fn(rl.StateFromFields(key.Action, raw, exists))

	patch := rl.FieldsFromCounters(key.Action, out.Write)
	if len(patch) == 0 {
		return out, tx.Commit()
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return rl.Outcome{}, err
	}

	// last_write uses the database clock, like a server timestamp.
	accepted := out.Accepted()

	if !exists {
		q := fmt.Sprintf(`
INSERT INTO %s (collection, user_id, fields, last_write)
VALUES ($1, $2, $3::jsonb, CASE WHEN $4::boolean THEN now() END)
ON CONFLICT (collection, user_id) DO NOTHING
`, r.table())
		res, err := tx.ExecContext(ctx, q, key.Collection, key.UserID, string(body), accepted)
		if err != nil {
			return rl.Outcome{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rl.Outcome{}, errInsertRace
		}
	} else {
		q := fmt.Sprintf(`
UPDATE %s
SET fields = fields || $3::jsonb,
    last_write = CASE WHEN $4::boolean THEN now() ELSE last_write END
WHERE collection = $1 AND user_id = $2
`, r.table())
		if _, err := tx.ExecContext(ctx, q, key.Collection, key.UserID, string(body), accepted); err != nil {
			return rl.Outcome{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return rl.Outcome{}, err
	}
	return out, nil
}

func (r *RateLimitRepositoryPG) Get(ctx context.Context, key rl.Key) (rl.State, error) {
	if r == nil || r.DB == nil {
		return rl.State{}, errRateLimitDBNil
	}
	raw, exists, err := r.selectFields(ctx, r.DB, key.Collection, key.UserID, false)
	if err != nil {
		return rl.State{}, err
	}
	return rl.StateFromFields(key.Action, raw, exists), nil
}

// Fields returns the raw record (nil when absent), lastWrite included.
func (r *RateLimitRepositoryPG) Fields(ctx context.Context, collection, userID string) (map[string]any, error) {
	if r == nil || r.DB == nil {
		return nil, errRateLimitDBNil
	}
	q := fmt.Sprintf(`SELECT fields, last_write FROM %s WHERE collection = $1 AND user_id = $2`, r.table())

	var body []byte
	var lw sql.NullTime
	err := r.DB.QueryRowContext(ctx, q, collection, userID).Scan(&body, &lw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := decodeFields(body)
	if err != nil {
		return nil, err
	}
	if lw.Valid {
		raw[rl.LastWriteField] = lw.Time
	}
	return raw, nil
}

func (r *RateLimitRepositoryPG) Delete(ctx context.Context, collection, userID string) error {
	if r == nil || r.DB == nil {
		return errRateLimitDBNil
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND user_id = $2`, r.table())
	_, err := r.DB.ExecContext(ctx, q, collection, userID)
	return err
}

// DeleteStale removes rows whose last_write is before the cutoff.
// Rows without last_write are kept.
func (r *RateLimitRepositoryPG) DeleteStale(ctx context.Context, collection string, before time.Time) (int, error) {
	if r == nil || r.DB == nil {
		return 0, errRateLimitDBNil
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND last_write < $2`, r.table())
	res, err := r.DB.ExecContext(ctx, q, collection, before.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListStale returns the records DeleteStale would remove. lastWrite lives in
// its own column and is copied into Fields.
func (r *RateLimitRepositoryPG) ListStale(ctx context.Context, collection string, before time.Time) ([]rl.Record, error) {
	if r == nil || r.DB == nil {
		return nil, errRateLimitDBNil
	}
	q := fmt.Sprintf(`SELECT user_id, fields, last_write FROM %s WHERE collection = $1 AND last_write < $2 ORDER BY user_id`, r.table())
	rows, err := r.DB.QueryContext(ctx, q, collection, before.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rl.Record
	for rows.Next() {
		var (
			uid       string
			body      []byte
			lastWrite time.Time
		)
		if err := rows.Scan(&uid, &body, &lastWrite); err != nil {
			return nil, err
		}
		raw, err := decodeFields(body)
		if err != nil {
			return nil, err
		}
		raw[rl.LastWriteField] = lastWrite.UTC()
		out = append(out, rl.Record{UserID: uid, Fields: raw})
	}
	return out, rows.Err()
}

func (r *RateLimitRepositoryPG) selectFields(ctx context.Context, run dbcommon.Runner, collection, userID string, lock bool) (map[string]any, bool, error) {
	q := fmt.Sprintf(`SELECT fields FROM %s WHERE collection = $1 AND user_id = $2`, r.table())
	if lock {
		q += ` FOR UPDATE`
	}

	var body []byte
	err := run.QueryRowContext(ctx, q, collection, userID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	raw, err := decodeFields(body)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// decodeFields keeps JSON numbers as float64; ratelimit decoding accepts them.
func decodeFields(body []byte) (map[string]any, error) {
	raw := map[string]any{}
	if len(body) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return raw, nil
}
