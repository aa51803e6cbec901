package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/print-hub-api/internal/models"
)

// Reference schema:
//
//	CREATE TABLE orders (
//	  id UUID PRIMARY KEY,
//	  token CHAR(32) NOT NULL UNIQUE,
//	  roll_number VARCHAR(50) NOT NULL,
//	  file_name TEXT NOT NULL,
//	  file_reference TEXT NOT NULL,
//	  total_pages INT NOT NULL CHECK (total_pages >= 1),
//	  color_pages INT NOT NULL CHECK (color_pages >= 0),
//	  bw_pages INT NOT NULL CHECK (bw_pages >= 0),
//	  price NUMERIC(10,2) NOT NULL CHECK (price >= 0),
//	  print_options JSONB NOT NULL,
//	  status VARCHAR(20) NOT NULL DEFAULT 'pending',
//	  payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
//	  payment_id VARCHAR(64) UNIQUE,
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL,
//	  CHECK (color_pages + bw_pages = total_pages)
//	);
const orderColumns = `id, token, roll_number, file_name, file_reference, total_pages, color_pages, bw_pages, price, print_options, status, payment_status, payment_id, created_at, updated_at`

// ErrInvalidLookup is returned when an OrderLookup names no identifier.
var ErrInvalidLookup = errors.New("order lookup requires an identifier")

// OrderMutation inspects a locked order and changes it in place. Returning a nil audit entry means nothing changed.
type OrderMutation func(order *models.Order) (*models.AuditLog, error)

// OrderRepository persists print orders.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository constructs the repository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order and its creation audit entry in one transaction.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, audit *models.AuditLog) (err error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO orders (` + orderColumns + `)
VALUES (:id, :token, :roll_number, :file_name, :file_reference, :total_pages, :color_pages, :bw_pages, :price, :print_options, :status, :payment_status, :payment_id, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if audit != nil {
		audit.EntityID = order.ID
		if err = insertAudit(ctx, tx, audit); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}
	return nil
}

// FindByID returns an order by id or sql.ErrNoRows.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return r.find(ctx, models.OrderLookup{ID: id})
}

// FindByToken returns an order by its public token or sql.ErrNoRows.
func (r *OrderRepository) FindByToken(ctx context.Context, token string) (*models.Order, error) {
	return r.find(ctx, models.OrderLookup{Token: token})
}

// FindByPaymentID returns the order currently bound to a gateway transaction id.
func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return r.find(ctx, models.OrderLookup{PaymentID: paymentID})
}

func (r *OrderRepository) find(ctx context.Context, lookup models.OrderLookup) (*models.Order, error) {
	clause, arg, err := lookupClause(lookup)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + clause + ` LIMIT 1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find order by %s: %w", lookup, err)
	}
	return &order, nil
}

// ListByRoll returns every order for a roll number, newest first.
func (r *OrderRepository) ListByRoll(ctx context.Context, rollNumber string) ([]models.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE roll_number = $1 ORDER BY created_at DESC`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, rollNumber); err != nil {
		return nil, fmt.Errorf("list orders by roll number: %w", err)
	}
	return orders, nil
}

// List returns a page of orders, newest first, and the total matching count.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	where := ""
	var args []interface{}
	if filter.Status != nil {
		where = " WHERE status = $1"
		args = append(args, *filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset)

	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateLocked locks the order row, applies fn and persists status, payment fields and the audit entry atomically.
// The boolean result reports whether anything was written.
func (r *OrderRepository) UpdateLocked(ctx context.Context, lookup models.OrderLookup, fn OrderMutation) (order *models.Order, changed bool, err error) {
	tx, order, err := r.lock(ctx, lookup)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil || !changed {
			_ = tx.Rollback()
		}
	}()

	audit, err := fn(order)
	if err != nil {
		return nil, false, err
	}
	if audit == nil {
		return order, false, nil
	}

	order.UpdatedAt = time.Now().UTC()
	const updateQuery = `UPDATE orders SET status = $1, payment_status = $2, payment_id = $3, updated_at = $4 WHERE id = $5`
	if _, err = tx.ExecContext(ctx, updateQuery, order.Status, order.PaymentStatus, order.PaymentID, order.UpdatedAt, order.ID); err != nil {
		return nil, false, fmt.Errorf("update order: %w", err)
	}
	audit.EntityID = order.ID
	if err = insertAudit(ctx, tx, audit); err != nil {
		return nil, false, err
	}
	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit order update: %w", err)
	}
	return order, true, nil
}

// DeleteLocked locks the order by token, lets fn approve the removal and deletes it with the audit entry.
// Any error, including one from fn or the commit, leaves the row in place.
func (r *OrderRepository) DeleteLocked(ctx context.Context, token string, fn OrderMutation) (order *models.Order, err error) {
	tx, order, err := r.lock(ctx, models.OrderLookup{Token: token})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	audit, err := fn(order)
	if err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, order.ID); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}
	if audit != nil {
		audit.EntityID = order.ID
		if err = insertAudit(ctx, tx, audit); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order delete: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) lock(ctx context.Context, lookup models.OrderLookup) (*sqlx.Tx, *models.Order, error) {
	clause, arg, err := lookupClause(lookup)
	if err != nil {
		return nil, nil, err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin order tx: %w", err)
	}
	var order models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + clause + ` FOR UPDATE`
	if err := tx.GetContext(ctx, &order, query, arg); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("lock order by %s: %w", lookup, err)
	}
	return tx, &order, nil
}

func lookupClause(lookup models.OrderLookup) (string, string, error) {
	switch {
	case lookup.ID != "":
		return "id = $1", lookup.ID, nil
	case lookup.Token != "":
		return "token = $1", lookup.Token, nil
	case lookup.PaymentID != "":
		return "payment_id = $1", lookup.PaymentID, nil
	}
	return "", "", ErrInvalidLookup
}
