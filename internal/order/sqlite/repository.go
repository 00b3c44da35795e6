// Package sqlite provides the SQLite-backed implementation of
// order.Repository.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — order tracking reads happen while confirmations and status updates
// are writing.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quickbite/orderflow/internal/order"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// which keeps Docker builds on Alpine simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
//
// orders_status_history is append-only: one immutable row per transition,
// never updated or deleted — it is the audit trail the tracking endpoint
// reads.
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id                  TEXT PRIMARY KEY,
    number              TEXT    NOT NULL UNIQUE,
    user_id             TEXT    NOT NULL,
    store_id            TEXT    NOT NULL DEFAULT '',
    status              TEXT    NOT NULL,
    payment_status      TEXT    NOT NULL DEFAULT '',
    payment_method      TEXT    NOT NULL DEFAULT '',

    subtotal            REAL    NOT NULL,
    tax                 REAL    NOT NULL,
    delivery_fee        REAL    NOT NULL,
    discount            REAL    NOT NULL,
    total               REAL    NOT NULL,
    promo_code          TEXT    NOT NULL DEFAULT '',

    -- JSON snapshot of the delivery address at confirmation time.
    delivery_address    TEXT    NOT NULL DEFAULT '{}',

    pickup_time         TEXT,
    actual_ready_time   TEXT,

    cancellation_reason TEXT    NOT NULL DEFAULT '',
    cancelled_by        TEXT    NOT NULL DEFAULT '',
    cancelled_at        TEXT,

    internal_notes      TEXT    NOT NULL DEFAULT '',
    assigned_driver_id  TEXT    NOT NULL DEFAULT '',
    rating              INTEGER NOT NULL DEFAULT 0,
    review              TEXT    NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT (SQLite idiom).
    created_at          TEXT    NOT NULL,
    updated_at          TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user    ON orders(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_orders_status  ON orders(status);

CREATE TABLE IF NOT EXISTS order_items (
    id            TEXT PRIMARY KEY,
    order_id      TEXT    NOT NULL,
    product_id    TEXT    NOT NULL,
    product_name  TEXT    NOT NULL,
    product_image TEXT    NOT NULL DEFAULT '',
    quantity      INTEGER NOT NULL,
    unit_price    REAL    NOT NULL,
    line_total    REAL    NOT NULL,
    selections    TEXT    NOT NULL DEFAULT '[]',
    add_on_ids    TEXT    NOT NULL DEFAULT '[]',
    notes         TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);

CREATE TABLE IF NOT EXISTS order_status_history (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id TEXT NOT NULL,
    status   TEXT NOT NULL,
    actor    TEXT NOT NULL,

    -- W3C identifiers of the request that caused the transition, so a row
    -- can be joined with the distributed trace in Grafana/Tempo.
    trace_id TEXT NOT NULL DEFAULT '',
    span_id  TEXT NOT NULL DEFAULT '',

    at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_order ON order_status_history(order_id, at);
`

// Repository is the SQLite implementation of order.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema.
//
//	repo, err := sqlite.Open("./data/orders.db")
func Open(path string) (*Repository, error) {
	// WAL enables concurrent readers; busy_timeout waits for locks instead
	// of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// "sqlite", not "sqlite3", for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply order schema: %w", err)
	}
	return &Repository{db: db}, nil
}

// DB exposes the underlying handle so the promo repository can share it.
func (r *Repository) DB() *sql.DB { return r.db }

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error { return r.db.Close() }

// Create persists the order, its items and the initial history row in one
// transaction: an order must never exist without its items.
func (r *Repository) Create(ctx context.Context, o *order.Order, initial order.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin create tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	addr, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("sqlite: encode address for order %s: %w", o.ID, err)
	}

	const insertOrder = `
		INSERT INTO orders
			(id, number, user_id, store_id, status, payment_status, payment_method,
			 subtotal, tax, delivery_fee, discount, total, promo_code,
			 delivery_address, pickup_time, actual_ready_time,
			 cancellation_reason, cancelled_by, cancelled_at,
			 internal_notes, assigned_driver_id, rating, review,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insertOrder,
		o.ID, o.Number, o.UserID, o.StoreID, string(o.Status), o.PaymentStatus, o.PaymentMethod,
		o.Subtotal, o.Tax, o.DeliveryFee, o.Discount, o.Total, o.PromoCode,
		string(addr), nullableTime(o.PickupTime), nullableTime(o.ActualReadyTime),
		o.CancellationReason, o.CancelledBy, nullableTime(o.CancelledAt),
		o.InternalNotes, o.AssignedDriverID, o.Rating, o.Review,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert order %s: %w", o.ID, err)
	}

	for _, it := range o.Items {
		if err := insertItem(ctx, tx, it); err != nil {
			return err
		}
	}

	if err := insertHistory(ctx, tx, initial); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit create tx: %w", err)
	}
	committed = true
	return nil
}

// Get returns the order with its items.
func (r *Repository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.db.QueryRowContext(ctx, selectOrder+` WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.items(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

// List returns orders matching the filter, newest first. The filter is a
// closed struct with typed fields, assembled into a WHERE clause here in one
// place.
func (r *Repository) List(ctx context.Context, f order.Filter) ([]*order.Order, error) {
	var conds []string
	var args []any

	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.StoreID != "" {
		conds = append(conds, "store_id = ?")
		args = append(args, f.StoreID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTime(f.To))
	}

	q := selectOrder
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate orders: %w", err)
	}

	for _, o := range out {
		if o.Items, err = r.items(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Update persists the order's mutable fields; when history is non-nil the
// row is appended in the same transaction so a transition and its audit row
// cannot diverge. Items are intentionally not touched: the snapshot is
// immutable.
func (r *Repository) Update(ctx context.Context, o *order.Order, history *order.HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin update tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `
		UPDATE orders
		SET    status = ?, payment_status = ?,
		       actual_ready_time = ?,
		       cancellation_reason = ?, cancelled_by = ?, cancelled_at = ?,
		       internal_notes = ?, assigned_driver_id = ?,
		       rating = ?, review = ?, updated_at = ?
		WHERE  id = ?`

	res, err := tx.ExecContext(ctx, q,
		string(o.Status), o.PaymentStatus,
		nullableTime(o.ActualReadyTime),
		o.CancellationReason, o.CancelledBy, nullableTime(o.CancelledAt),
		o.InternalNotes, o.AssignedDriverID,
		o.Rating, o.Review, formatTime(o.UpdatedAt),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update order %s: %w", o.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return order.ErrNotFound
	}

	if history != nil {
		if err := insertHistory(ctx, tx, *history); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit update tx: %w", err)
	}
	committed = true
	return nil
}

// History returns the status trail in chronological order.
func (r *Repository) History(ctx context.Context, orderID string) ([]order.HistoryEntry, error) {
	const q = `
		SELECT order_id, status, actor, trace_id, span_id, at
		FROM   order_status_history
		WHERE  order_id = ?
		ORDER  BY at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query history for %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []order.HistoryEntry
	for rows.Next() {
		var e order.HistoryEntry
		var at string
		if err := rows.Scan(&e.OrderID, &e.Status, &e.Actor, &e.TraceID, &e.SpanID, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan history row: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectOrder = `
	SELECT id, number, user_id, store_id, status, payment_status, payment_method,
	       subtotal, tax, delivery_fee, discount, total, promo_code,
	       delivery_address, pickup_time, actual_ready_time,
	       cancellation_reason, cancelled_by, cancelled_at,
	       internal_notes, assigned_driver_id, rating, review,
	       created_at, updated_at
	FROM   orders`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*order.Order, error) {
	var o order.Order
	var status, addr, createdAt, updatedAt string
	var pickup, ready, cancelled sql.NullString

	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.StoreID, &status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Subtotal, &o.Tax, &o.DeliveryFee, &o.Discount, &o.Total, &o.PromoCode,
		&addr, &pickup, &ready,
		&o.CancellationReason, &o.CancelledBy, &cancelled,
		&o.InternalNotes, &o.AssignedDriverID, &o.Rating, &o.Review,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)

	if err := json.Unmarshal([]byte(addr), &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("sqlite: decode address for order %s: %w", o.ID, err)
	}
	if o.PickupTime, err = parseNullableTime(pickup); err != nil {
		return nil, err
	}
	if o.ActualReadyTime, err = parseNullableTime(ready); err != nil {
		return nil, err
	}
	if o.CancelledAt, err = parseNullableTime(cancelled); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) items(ctx context.Context, orderID string) ([]order.Item, error) {
	const q = `
		SELECT id, order_id, product_id, product_name, product_image,
		       quantity, unit_price, line_total, selections, add_on_ids, notes
		FROM   order_items
		WHERE  order_id = ?
		ORDER  BY id`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query items for %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []order.Item
	for rows.Next() {
		var it order.Item
		var selections, addOns string
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductImage,
			&it.Quantity, &it.UnitPrice, &it.LineTotal, &selections, &addOns, &it.Notes,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan item row: %w", err)
		}
		if err := json.Unmarshal([]byte(selections), &it.Selections); err != nil {
			return nil, fmt.Errorf("sqlite: decode selections for item %s: %w", it.ID, err)
		}
		if err := json.Unmarshal([]byte(addOns), &it.AddOnIDs); err != nil {
			return nil, fmt.Errorf("sqlite: decode add-ons for item %s: %w", it.ID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func insertItem(ctx context.Context, tx *sql.Tx, it order.Item) error {
	selections, err := json.Marshal(it.Selections)
	if err != nil {
		return fmt.Errorf("sqlite: encode selections for item %s: %w", it.ID, err)
	}
	if it.Selections == nil {
		selections = []byte("[]")
	}
	addOns, err := json.Marshal(it.AddOnIDs)
	if err != nil {
		return fmt.Errorf("sqlite: encode add-ons for item %s: %w", it.ID, err)
	}
	if it.AddOnIDs == nil {
		addOns = []byte("[]")
	}

	const q = `
		INSERT INTO order_items
			(id, order_id, product_id, product_name, product_image,
			 quantity, unit_price, line_total, selections, add_on_ids, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, q,
		it.ID, it.OrderID, it.ProductID, it.ProductName, it.ProductImage,
		it.Quantity, it.UnitPrice, it.LineTotal, string(selections), string(addOns), it.Notes,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert item for order %s: %w", it.OrderID, err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, e order.HistoryEntry) error {
	const q = `
		INSERT INTO order_status_history (order_id, status, actor, trace_id, span_id, at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, q,
		e.OrderID, string(e.Status), e.Actor, e.TraceID, e.SpanID, formatTime(e.At))
	if err != nil {
		return fmt.Errorf("sqlite: insert history for order %s: %w", e.OrderID, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
