// Package sqlite provides the SQLite-backed implementation of
// promo.Repository.
//
// The usage-counter increment is the one operation here with a real
// concurrency hazard: two users confirming near-simultaneously with the same
// near-exhausted code must not both slip past the limit. The UPDATE below is
// conditional (usage_count < usage_limit) so the check and the increment are
// one atomic statement at the storage layer, never a read-then-write.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quickbite/orderflow/internal/promo"
)

const schema = `
CREATE TABLE IF NOT EXISTS promo_codes (
    id             TEXT PRIMARY KEY,
    code           TEXT    NOT NULL UNIQUE,
    discount_type  TEXT    NOT NULL,
    value          REAL    NOT NULL,
    active         INTEGER NOT NULL DEFAULT 1,

    -- Validity window, RFC3339 TEXT (SQLite idiom).
    valid_from     TEXT    NOT NULL,
    valid_until    TEXT    NOT NULL,

    -- 0 means unlimited.
    usage_limit    INTEGER NOT NULL DEFAULT 0,
    usage_count    INTEGER NOT NULL DEFAULT 0,
    per_user_limit INTEGER NOT NULL DEFAULT 0
);

-- One row per (code, order) redemption. The UNIQUE constraint is what makes
-- Release idempotent and prevents double counting a single order.
CREATE TABLE IF NOT EXISTS promo_code_usages (
    code_id  TEXT NOT NULL,
    order_id TEXT NOT NULL,
    user_id  TEXT NOT NULL,
    used_at  TEXT NOT NULL,
    UNIQUE (code_id, order_id)
);

CREATE INDEX IF NOT EXISTS idx_promo_usages_user ON promo_code_usages(code_id, user_id);
`

// Repository is the SQLite implementation of promo.Repository.
type Repository struct {
	db *sql.DB
}

// New wires the repository onto an already-open database handle and applies
// the schema. The handle is shared with the order repository so a checkout
// confirmation can span both in one process.
func New(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: apply promo schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// GetByCode looks a promo code up by its user-facing string.
func (r *Repository) GetByCode(ctx context.Context, code string) (*promo.Code, error) {
	const q = `
		SELECT id, code, discount_type, value, active,
		       valid_from, valid_until, usage_limit, usage_count, per_user_limit
		FROM   promo_codes
		WHERE  code = ?`

	row := r.db.QueryRowContext(ctx, q, code)

	var c promo.Code
	var active int
	var from, until string
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.Value, &active,
		&from, &until, &c.UsageLimit, &c.UsageCount, &c.PerUserLimit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, promo.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get promo code %q: %w", code, err)
	}
	c.Active = active != 0

	if c.ValidFrom, err = parseRFC3339(from); err != nil {
		return nil, err
	}
	if c.ValidUntil, err = parseRFC3339(until); err != nil {
		return nil, err
	}
	return &c, nil
}

// Consume redeems the code for one order inside a single transaction:
// per-user limit check, usage row insert, and the atomic conditional
// increment of the global counter.
func (r *Repository) Consume(ctx context.Context, code, userID, orderID string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin consume tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var codeID string
	var perUserLimit int
	row := tx.QueryRowContext(ctx,
		`SELECT id, per_user_limit FROM promo_codes WHERE code = ?`, code)
	if err := row.Scan(&codeID, &perUserLimit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return promo.ErrCodeNotFound
		}
		return fmt.Errorf("sqlite: resolve promo code %q: %w", code, err)
	}

	if perUserLimit > 0 {
		var used int
		row := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM promo_code_usages WHERE code_id = ? AND user_id = ?`,
			codeID, userID)
		if err := row.Scan(&used); err != nil {
			return fmt.Errorf("sqlite: count user usages: %w", err)
		}
		if used >= perUserLimit {
			return promo.ErrUserLimitReached
		}
	}

	// Increment-if-below-limit in one statement. usage_limit = 0 means
	// unlimited, so the guard only bites when a limit is set.
	res, err := tx.ExecContext(ctx, `
		UPDATE promo_codes
		SET    usage_count = usage_count + 1
		WHERE  id = ? AND (usage_limit = 0 OR usage_count < usage_limit)`,
		codeID)
	if err != nil {
		return fmt.Errorf("sqlite: increment usage for %q: %w", code, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return promo.ErrUsageLimitReached
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO promo_code_usages (code_id, order_id, user_id, used_at)
		VALUES (?, ?, ?, ?)`,
		codeID, orderID, userID, now.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("sqlite: record usage for order %q: %w", orderID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit consume tx: %w", err)
	}
	committed = true
	return nil
}

// Release compensates a Consume after a failed confirmation. Deleting the
// usage row first and only decrementing when a row was actually deleted is
// what makes repeated Release calls for the same order harmless.
func (r *Repository) Release(ctx context.Context, code, orderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin release tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM promo_code_usages
		WHERE  order_id = ?
		AND    code_id = (SELECT id FROM promo_codes WHERE code = ?)`,
		orderID, code)
	if err != nil {
		return fmt.Errorf("sqlite: delete usage for order %q: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE promo_codes
			SET    usage_count = MAX(usage_count - 1, 0)
			WHERE  code = ?`, code); err != nil {
			return fmt.Errorf("sqlite: decrement usage for %q: %w", code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit release tx: %w", err)
	}
	committed = true
	return nil
}

func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}
