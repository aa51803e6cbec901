package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSettings are the merchant credentials and switches for the gateway.
type PaymentSettings struct {
	Enabled     bool   `json:"enabled"`
	MerchantID  string `json:"merchantId"`
	MerchantKey string `json:"merchantKey,omitempty"`
	Environment string `json:"environment"`
}

// Masked returns a copy safe to return to clients.
func (s PaymentSettings) Masked() PaymentSettings {
	if s.MerchantKey != "" {
		s.MerchantKey = "********"
	}
	return s
}

// Snapshot returns the audited view without the merchant key.
func (s PaymentSettings) Snapshot() *AuditSnapshot {
	return &AuditSnapshot{Settings: &PaymentSettingsSnapshot{
		Enabled:       s.Enabled,
		MerchantID:    s.MerchantID,
		Environment:   s.Environment,
		KeyConfigured: s.MerchantKey != "",
	}}
}

// PaymentInitiation is everything a client needs to post to the hosted payment page.
type PaymentInitiation struct {
	ProcessURL string            `json:"processUrl"`
	TxnID      string            `json:"txnId"`
	Params     map[string]string `json:"params"`
}

// PaymentCallback carries the fields posted back by the gateway.
type PaymentCallback struct {
	OrderID      string `form:"ORDERID" json:"ORDERID"`
	TxnID        string `form:"TXNID" json:"TXNID"`
	TxnAmount    string `form:"TXNAMOUNT" json:"TXNAMOUNT"`
	Status       string `form:"STATUS" json:"STATUS"`
	ChecksumHash string `form:"CHECKSUMHASH" json:"CHECKSUMHASH"`
}

// SignedFields returns the fields covered by the callback checksum.
func (c PaymentCallback) SignedFields() map[string]string {
	return map[string]string{
		"ORDERID":   c.OrderID,
		"TXNID":     c.TxnID,
		"TXNAMOUNT": c.TxnAmount,
		"STATUS":    c.Status,
	}
}

// GatewayStatusSuccess is the STATUS value reported for a settled transaction.
const GatewayStatusSuccess = "TXN_SUCCESS"

// PaymentVerification is the public view of a payment attempt.
type PaymentVerification struct {
	PaymentID  string          `json:"paymentId"`
	Status     PaymentStatus   `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	OrderToken string          `json:"orderToken"`
	Verified   bool            `json:"verified"`
}

// PaymentStats summarises payment outcomes over a rolling window.
type PaymentStats struct {
	Since          time.Time       `json:"since"`
	TotalOrders    int             `db:"total_orders" json:"totalOrders"`
	PaidOrders     int             `db:"paid_orders" json:"paidOrders"`
	PendingOrders  int             `db:"pending_orders" json:"pendingOrders"`
	FailedOrders   int             `db:"failed_orders" json:"failedOrders"`
	TotalRevenue   decimal.Decimal `db:"total_revenue" json:"totalRevenue"`
	ConversionRate decimal.Decimal `json:"conversionRate"`
}
