package dto

import "github.com/shopspring/decimal"

// InitiatePaymentRequest is the payload of POST /payment/process. OrderID is the order token.
type InitiatePaymentRequest struct {
	OrderID    string          `json:"orderId" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	RollNumber string          `json:"rollNumber" validate:"required,max=50"`
}

// UpdatePaymentSettingsRequest replaces payment settings. A blank MerchantKey keeps the stored key.
type UpdatePaymentSettingsRequest struct {
	Enabled     bool   `json:"enabled"`
	MerchantID  string `json:"merchantId" validate:"required_if=Enabled true,max=64"`
	MerchantKey string `json:"merchantKey" validate:"max=128"`
	Environment string `json:"environment" validate:"omitempty,oneof=PROD TEST"`
}
