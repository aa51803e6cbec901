package models

import "time"

// ConfigurationType defines supported types for configuration values.
type ConfigurationType string

const (
	ConfigurationTypeString  ConfigurationType = "STRING"
	ConfigurationTypeBoolean ConfigurationType = "BOOLEAN"
)

// Keys of the configuration rows backing payment settings.
const (
	ConfigKeyPaymentEnabled   = "payment_enabled"
	ConfigKeyMerchantID       = "paytm_merchant_id"
	ConfigKeyMerchantKey      = "paytm_merchant_key"
	ConfigKeyEnvironment      = "paytm_environment"
	DefaultPaymentEnvironment = "TEST"
)

// PaymentConfigKeys lists every key read when loading payment settings.
var PaymentConfigKeys = []string{
	ConfigKeyPaymentEnabled,
	ConfigKeyMerchantID,
	ConfigKeyMerchantKey,
	ConfigKeyEnvironment,
}

// Configuration is a persisted key/value setting.
type Configuration struct {
	Key       string            `db:"key" json:"key"`
	Value     string            `db:"value" json:"value"`
	Type      ConfigurationType `db:"type" json:"type"`
	UpdatedBy *string           `db:"updated_by" json:"updatedBy,omitempty"`
	UpdatedAt time.Time         `db:"updated_at" json:"updatedAt"`
}
