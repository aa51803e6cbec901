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

const adminUserColumns = `id, username, password_hash, role, active, last_login, created_at, updated_at`

// UserRepository provides database access for operator accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns an operator by username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	const query = `SELECT ` + adminUserColumns + ` FROM admin_users WHERE username = $1 LIMIT 1`
	var user models.AdminUser
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by username: %w", err)
	}
	return &user, nil
}

// FindByID returns an operator by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.AdminUser, error) {
	const query = `SELECT ` + adminUserColumns + ` FROM admin_users WHERE id = $1 LIMIT 1`
	var user models.AdminUser
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new operator.
func (r *UserRepository) Create(ctx context.Context, user *models.AdminUser) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	const query = `INSERT INTO admin_users (` + adminUserColumns + `)
VALUES (:id, :username, :password_hash, :role, :active, :last_login, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	return nil
}

// ExistsByUsername reports whether a username is taken.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM admin_users WHERE username = $1)`, username); err != nil {
		return false, fmt.Errorf("check admin username: %w", err)
	}
	return exists, nil
}

// UpdateLastLogin updates the last_login timestamp for an operator.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE admin_users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}
