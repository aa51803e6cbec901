package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Audit actions written to audit_logs.
const (
	AuditActionCreateOrder           = "create_order"
	AuditActionCancelOrder           = "cancel_order"
	AuditActionUpdateOrder           = "update_order"
	AuditActionUpdatePaymentSettings = "update_payment_settings"
)

// Audited entity types.
const (
	AuditEntityOrder           = "orders"
	AuditEntityPaymentSettings = "payment_settings"
)

// Well-known actors for changes not made by an authenticated operator.
const (
	ActorCustomer = "customer"
	ActorGateway  = "payment-gateway"
)

// Actor identifies who triggered a change, with request metadata for the audit trail.
type Actor struct {
	Name      string
	IP        string
	UserAgent string
}

// OrderSnapshot is the audited view of an order.
type OrderSnapshot struct {
	Token         string        `json:"token"`
	RollNumber    string        `json:"rollNumber,omitempty"`
	FileReference string        `json:"fileReference,omitempty"`
	TotalPages    int           `json:"totalPages,omitempty"`
	Price         string        `json:"price,omitempty"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentID     string        `json:"paymentId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// PaymentSettingsSnapshot is the audited view of payment settings. The merchant key is never recorded.
type PaymentSettingsSnapshot struct {
	Enabled       bool   `json:"enabled"`
	MerchantID    string `json:"merchantId"`
	Environment   string `json:"environment"`
	KeyConfigured bool   `json:"keyConfigured"`
}

// AuditSnapshot is the typed JSONB payload stored in before_state / after_state.
type AuditSnapshot struct {
	Order    *OrderSnapshot           `json:"order,omitempty"`
	Settings *PaymentSettingsSnapshot `json:"settings,omitempty"`
}

// Value marshals the snapshot to JSON for persistence.
func (s AuditSnapshot) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal audit snapshot: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB into the snapshot.
func (s *AuditSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = AuditSnapshot{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for AuditSnapshot", value)
	}
	if len(data) == 0 {
		*s = AuditSnapshot{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// AuditLog is an audit trail record.
type AuditLog struct {
	ID          string         `db:"id" json:"id"`
	Actor       string         `db:"actor" json:"actor"`
	Action      string         `db:"action" json:"action"`
	EntityType  string         `db:"entity_type" json:"entityType"`
	EntityID    string         `db:"entity_id" json:"entityId"`
	BeforeState *AuditSnapshot `db:"before_state" json:"beforeState,omitempty"`
	AfterState  *AuditSnapshot `db:"after_state" json:"afterState,omitempty"`
	IPAddress   string         `db:"ip_address" json:"ipAddress"`
	UserAgent   string         `db:"user_agent" json:"userAgent"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// NewAuditLog builds an entry attributed to actor.
func NewAuditLog(actor Actor, action, entityType, entityID string, before, after *AuditSnapshot) *AuditLog {
	return &AuditLog{
		Actor:       actor.Name,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		BeforeState: before,
		AfterState:  after,
		IPAddress:   actor.IP,
		UserAgent:   actor.UserAgent,
	}
}
