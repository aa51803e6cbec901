package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/print-hub-api/internal/models"
)

// namedExecer is satisfied by both *sqlx.DB and *sqlx.Tx.
type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

const insertAuditQuery = `INSERT INTO audit_logs (id, actor, action, entity_type, entity_id, before_state, after_state, ip_address, user_agent, created_at)
VALUES (:id, :actor, :action, :entity_type, :entity_id, :before_state, :after_state, :ip_address, :user_agent, :created_at)`

func insertAudit(ctx context.Context, exec namedExecer, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := exec.NamedExecContext(ctx, insertAuditQuery, entry); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// AuditRepository reads and writes the audit trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create stores a standalone audit entry.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return insertAudit(ctx, r.db, entry)
}

// ListByEntity returns the audit history of one entity, newest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	const query = `SELECT id, actor, action, entity_type, entity_id, before_state, after_state, ip_address, user_agent, created_at
FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at DESC`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
