package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of a print order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of an order.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a settled outcome.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusPaid || s == PaymentStatusFailed
}

// PrintOptions is persisted as JSONB.
type PrintOptions struct {
	Color         bool   `json:"color"`
	DoubleSided   bool   `json:"doubleSided"`
	Copies        int    `json:"copies" validate:"gte=0,lte=100"`
	SelectedPages []int  `json:"selectedPages,omitempty" validate:"omitempty,dive,gte=1"`
	PageRange     string `json:"pageRange,omitempty" validate:"max=255"`
	PaperSize     string `json:"paperSize,omitempty" validate:"omitempty,oneof=A4 A3 Letter Legal"`
}

// Value marshals the options to JSON for persistence.
func (p PrintOptions) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal print options: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB into the options struct.
func (p *PrintOptions) Scan(value interface{}) error {
	if value == nil {
		*p = PrintOptions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for PrintOptions", value)
	}
	if len(data) == 0 {
		*p = PrintOptions{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal print options: %w", err)
	}
	return nil
}

// Order is a print job row in the orders table.
type Order struct {
	ID            string          `db:"id" json:"id"`
	Token         string          `db:"token" json:"token"`
	RollNumber    string          `db:"roll_number" json:"rollNumber"`
	FileName      string          `db:"file_name" json:"fileName"`
	FileReference string          `db:"file_reference" json:"-"`
	TotalPages    int             `db:"total_pages" json:"totalPages"`
	ColorPages    int             `db:"color_pages" json:"colorPages"`
	BWPages       int             `db:"bw_pages" json:"bwPages"`
	Price         decimal.Decimal `db:"price" json:"price"`
	PrintOptions  PrintOptions    `db:"print_options" json:"printOptions"`
	Status        OrderStatus     `db:"status" json:"status"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"paymentStatus"`
	PaymentID     *string         `db:"payment_id" json:"paymentId,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

// Snapshot captures the audited fields of the order.
func (o *Order) Snapshot() *AuditSnapshot {
	if o == nil {
		return nil
	}
	snap := &OrderSnapshot{
		Token:         o.Token,
		RollNumber:    o.RollNumber,
		FileReference: o.FileReference,
		TotalPages:    o.TotalPages,
		Price:         o.Price.StringFixed(2),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
	}
	if o.PaymentID != nil {
		snap.PaymentID = *o.PaymentID
	}
	return &AuditSnapshot{Order: snap}
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status   *OrderStatus
	Page     int
	PageSize int
}

// OrderLookup selects a single order by exactly one identifier.
type OrderLookup struct {
	ID        string
	Token     string
	PaymentID string
}

// String renders the lookup for log fields.
func (l OrderLookup) String() string {
	switch {
	case l.ID != "":
		return "id=" + l.ID
	case l.Token != "":
		return "token=" + l.Token
	default:
		return "payment_id=" + l.PaymentID
	}
}

// OrderDetail is an order with its audit history.
type OrderDetail struct {
	Order
	AuditTrail []AuditLog `json:"auditTrail"`
}
