package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/gateway"
)

const (
	paymentStatsWindowDays = 30
	txnSuffixAlphabet      = "0123456789abcdefghijklmnopqrstuvwxyz"
	txnSuffixLength        = 9
)

type paymentOrders interface {
	GetByToken(ctx context.Context, token string) (*models.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	AttachPayment(ctx context.Context, token, txnID string, actor models.Actor) (*models.Order, error)
	SetPaymentStatus(ctx context.Context, token, txnID string, status models.PaymentStatus, actor models.Actor) (*models.Order, bool, error)
}

type paymentSettingsLoader interface {
	Load(ctx context.Context) (models.PaymentSettings, error)
}

type paymentStatsReader interface {
	PaymentStats(ctx context.Context, since time.Time) (models.PaymentStats, error)
}

// PaymentConfig holds process-level gateway settings.
type PaymentConfig struct {
	// CallbackURL is the absolute URL the gateway posts results to.
	CallbackURL string
}

// PaymentService drives the hosted payment page handshake.
type PaymentService struct {
	orders    paymentOrders
	settings  paymentSettingsLoader
	stats     paymentStatsReader
	events    eventEmitter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    PaymentConfig
	now       func() time.Time
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(orders paymentOrders, settings paymentSettingsLoader, stats paymentStatsReader, events eventEmitter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg PaymentConfig) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentService{
		orders:    orders,
		settings:  settings,
		stats:     stats,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Initiate starts a payment attempt for an order and returns the signed form parameters.
func (s *PaymentService) Initiate(ctx context.Context, req dto.InitiatePaymentRequest, actor models.Actor) (*models.PaymentInitiation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.Amount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "valid amount is required")
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, appErrors.ErrPaymentDisabled
	}
	if strings.TrimSpace(settings.MerchantID) == "" {
		return nil, appErrors.ErrPaymentNotConfigured
	}
	if settings.MerchantKey == "" {
		return nil, appErrors.Clone(appErrors.ErrPaymentNotConfigured, "payment merchant key not configured")
	}

	order, err := s.orders.GetByToken(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.RollNumber != req.RollNumber {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roll number does not match the order")
	}
	if !order.Price.Round(2).Equal(req.Amount.Round(2)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("amount must equal the order price of %s", order.Price.StringFixed(2)))
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrPaymentConflict, "order is already paid")
	}

	txnID, err := s.newTxnID()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate transaction id")
	}

	params := map[string]string{
		"MID":              settings.MerchantID,
		"ORDER_ID":         order.Token,
		"TXN_AMOUNT":       order.Price.StringFixed(2),
		"CUST_ID":          order.RollNumber,
		"TXN_ID":           txnID,
		"CHANNEL_ID":       "WEB",
		"WEBSITE":          gateway.Website(settings.Environment),
		"CALLBACK_URL":     s.config.CallbackURL,
		"INDUSTRY_TYPE_ID": "Retail",
	}
	params[gateway.ChecksumField] = gateway.Checksum(params, settings.MerchantKey)

	if _, err := s.orders.AttachPayment(ctx, order.Token, txnID, actor); err != nil {
		return nil, err
	}

	s.metrics.Payment("initiated")
	s.logger.Info("payment initiated",
		zap.String("order_token", order.Token),
		zap.String("txn_id", txnID),
		zap.String("amount", order.Price.StringFixed(2)),
		zap.String("environment", settings.Environment),
	)
	if s.events != nil {
		s.events.Emit(ctx, models.DomainEvent{
			Type:       models.EventPaymentInitiated,
			OrderID:    order.ID,
			OrderToken: order.Token,
			Actor:      actor.Name,
			Data:       map[string]interface{}{"paymentId": txnID, "amount": order.Price.StringFixed(2)},
		})
	}

	return &models.PaymentInitiation{
		ProcessURL: gateway.ProcessURL(settings.Environment),
		TxnID:      txnID,
		Params:     params,
	}, nil
}

// HandleCallback verifies and applies a gateway result. The checksum is checked with the merchant key
// configured at the time of the callback.
func (s *PaymentService) HandleCallback(ctx context.Context, cb models.PaymentCallback) (*models.Order, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if settings.MerchantKey == "" || !gateway.Verify(cb.SignedFields(), settings.MerchantKey, cb.ChecksumHash) {
		s.metrics.ChecksumMismatch()
		s.logger.Error("payment callback checksum mismatch",
			zap.String("order_id", cb.OrderID),
			zap.String("txn_id", cb.TxnID),
		)
		return nil, appErrors.ErrChecksumMismatch
	}

	status := models.PaymentStatusFailed
	if cb.Status == models.GatewayStatusSuccess {
		status = models.PaymentStatusPaid
	}

	order, changed, err := s.orders.SetPaymentStatus(ctx, cb.OrderID, cb.TxnID, status, models.Actor{Name: models.ActorGateway})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case appErrors.ErrPaymentConflict.Code:
				s.metrics.Payment("conflict")
				s.logger.Warn("payment callback conflicts with settled outcome", zap.String("order_id", cb.OrderID), zap.String("txn_id", cb.TxnID), zap.String("status", cb.Status))
			case appErrors.ErrInvalidState.Code:
				s.metrics.Payment("stale")
				s.logger.Warn("payment callback for stale transaction", zap.String("order_id", cb.OrderID), zap.String("txn_id", cb.TxnID))
			}
		}
		return nil, err
	}

	if !changed {
		s.metrics.Payment("duplicate")
		s.logger.Info("duplicate payment callback ignored", zap.String("order_id", cb.OrderID), zap.String("txn_id", cb.TxnID))
		return order, nil
	}

	if amount, err := decimal.NewFromString(cb.TxnAmount); err != nil || !amount.Equal(order.Price) {
		s.logger.Warn("payment callback amount differs from order price", zap.String("order_id", cb.OrderID), zap.String("txn_amount", cb.TxnAmount), zap.String("price", order.Price.StringFixed(2)))
	}
	s.metrics.Payment(string(status))
	s.logger.Info("payment callback processed", zap.String("order_id", cb.OrderID), zap.String("txn_id", cb.TxnID), zap.String("payment_status", string(status)))
	return order, nil
}

// Verify reports the state of a payment attempt.
func (s *PaymentService) Verify(ctx context.Context, paymentID string) (*models.PaymentVerification, error) {
	order, err := s.orders.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &models.PaymentVerification{
		PaymentID:  paymentID,
		Status:     order.PaymentStatus,
		Amount:     order.Price,
		OrderToken: order.Token,
		Verified:   true,
	}, nil
}

// Stats summarises payment outcomes of orders created in the last 30 days.
func (s *PaymentService) Stats(ctx context.Context) (*models.PaymentStats, error) {
	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -paymentStatsWindowDays)
	stats, err := s.stats.PaymentStats(ctx, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment stats")
	}
	stats.Since = since
	stats.ConversionRate = decimal.Zero
	if stats.TotalOrders > 0 {
		stats.ConversionRate = decimal.NewFromInt(int64(stats.PaidOrders)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.TotalOrders))).
			Round(2)
	}
	return &stats, nil
}

func (s *PaymentService) newTxnID() (string, error) {
	suffix := make([]byte, txnSuffixLength)
	limit := big.NewInt(int64(len(txnSuffixAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		suffix[i] = txnSuffixAlphabet[n.Int64()]
	}
	return fmt.Sprintf("TXN_%d_%s", s.now().UnixMilli(), suffix), nil
}
