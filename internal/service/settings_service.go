package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/gateway"
)

const paymentSettingsEntityID = "payment"

type settingsRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	BulkUpsert(ctx context.Context, cfgs []models.Configuration, audit *models.AuditLog) error
}

// SettingsService reads and writes the payment settings stored in configurations.
type SettingsService struct {
	repo      settingsRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SettingsService{repo: repo, validator: validate, logger: logger}
}

// Load returns the current settings including the merchant key. Never expose the result directly.
func (s *SettingsService) Load(ctx context.Context) (models.PaymentSettings, error) {
	rows, err := s.repo.ListByKeys(ctx, models.PaymentConfigKeys)
	if err != nil {
		return models.PaymentSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment settings")
	}
	settings := models.PaymentSettings{Environment: models.DefaultPaymentEnvironment}
	for _, row := range rows {
		switch row.Key {
		case models.ConfigKeyPaymentEnabled:
			settings.Enabled, _ = strconv.ParseBool(row.Value)
		case models.ConfigKeyMerchantID:
			settings.MerchantID = row.Value
		case models.ConfigKeyMerchantKey:
			settings.MerchantKey = row.Value
		case models.ConfigKeyEnvironment:
			if row.Value != "" {
				settings.Environment = gateway.NormalizeEnv(row.Value)
			}
		}
	}
	return settings, nil
}

// Get returns the settings with the merchant key masked.
func (s *SettingsService) Get(ctx context.Context) (models.PaymentSettings, error) {
	settings, err := s.Load(ctx)
	if err != nil {
		return models.PaymentSettings{}, err
	}
	return settings.Masked(), nil
}

// Update replaces the payment settings. A blank merchant key keeps the stored one.
func (s *SettingsService) Update(ctx context.Context, req dto.UpdatePaymentSettingsRequest, actor models.Actor) (models.PaymentSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.PaymentSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment settings payload")
	}

	current, err := s.Load(ctx)
	if err != nil {
		return models.PaymentSettings{}, err
	}

	next := models.PaymentSettings{
		Enabled:     req.Enabled,
		MerchantID:  strings.TrimSpace(req.MerchantID),
		MerchantKey: current.MerchantKey,
		Environment: current.Environment,
	}
	if key := strings.TrimSpace(req.MerchantKey); key != "" {
		next.MerchantKey = key
	}
	if req.Environment != "" {
		next.Environment = gateway.NormalizeEnv(req.Environment)
	}
	if next.Enabled && next.MerchantKey == "" {
		return models.PaymentSettings{}, appErrors.Clone(appErrors.ErrValidation, "merchant key is required to enable payments")
	}

	updatedBy := actor.Name
	rows := []models.Configuration{
		{Key: models.ConfigKeyPaymentEnabled, Value: strconv.FormatBool(next.Enabled), Type: models.ConfigurationTypeBoolean, UpdatedBy: &updatedBy},
		{Key: models.ConfigKeyMerchantID, Value: next.MerchantID, Type: models.ConfigurationTypeString, UpdatedBy: &updatedBy},
		{Key: models.ConfigKeyMerchantKey, Value: next.MerchantKey, Type: models.ConfigurationTypeString, UpdatedBy: &updatedBy},
		{Key: models.ConfigKeyEnvironment, Value: next.Environment, Type: models.ConfigurationTypeString, UpdatedBy: &updatedBy},
	}
	audit := models.NewAuditLog(actor, models.AuditActionUpdatePaymentSettings, models.AuditEntityPaymentSettings, paymentSettingsEntityID, current.Snapshot(), next.Snapshot())
	if err := s.repo.BulkUpsert(ctx, rows, audit); err != nil {
		return models.PaymentSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save payment settings")
	}

	s.logger.Info("payment settings updated",
		zap.String("actor", actor.Name),
		zap.Bool("enabled", next.Enabled),
		zap.String("environment", next.Environment),
		zap.Bool("key_rotated", next.MerchantKey != current.MerchantKey),
	)
	return next.Masked(), nil
}
