package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/internal/repository"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/pricing"
)

// DefaultCancelWindow is how long after creation a customer may still cancel.
const DefaultCancelWindow = 30 * time.Second

type orderRepository interface {
	Create(ctx context.Context, order *models.Order, audit *models.AuditLog) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByToken(ctx context.Context, token string) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	ListByRoll(ctx context.Context, rollNumber string) ([]models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	UpdateLocked(ctx context.Context, lookup models.OrderLookup, fn repository.OrderMutation) (*models.Order, bool, error)
	DeleteLocked(ctx context.Context, token string, fn repository.OrderMutation) (*models.Order, error)
}

type auditReader interface {
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error)
}

type orderBlobStore interface {
	Exists(key string) (bool, error)
	Delete(key string) (bool, error)
	Hold(key string) (release func() error, restore func() error, err error)
}

type previewSigner interface {
	Generate(orderToken, key string) (string, time.Time, error)
}

// OrderServiceConfig tunes the order ledger.
type OrderServiceConfig struct {
	CancelWindow time.Duration
	// FilesPath is the public route files are served from, e.g. /api/files.
	FilesPath string
}

// OrderService owns the order lifecycle.
type OrderService struct {
	repo      orderRepository
	audits    auditReader
	blobs     orderBlobStore
	signer    previewSigner
	cache     *CacheService
	events    eventEmitter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    OrderServiceConfig
	now       func() time.Time
}

// NewOrderService constructs an OrderService.
func NewOrderService(
	repo orderRepository,
	audits auditReader,
	blobs orderBlobStore,
	signer previewSigner,
	cache *CacheService,
	events eventEmitter,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg OrderServiceConfig,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.CancelWindow <= 0 {
		cfg.CancelWindow = DefaultCancelWindow
	}
	if cfg.FilesPath == "" {
		cfg.FilesPath = "/api/files"
	}
	return &OrderService{
		repo:      repo,
		audits:    audits,
		blobs:     blobs,
		signer:    signer,
		cache:     cache,
		events:    events,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Create prices and records a new order for an already ingested file.
// The stored blob is removed whenever the order cannot be recorded.
func (s *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest, file *models.FileReference, actor models.Actor) (order *models.Order, err error) {
	if file == nil || file.Key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	defer func() {
		if err != nil {
			s.discardBlob(file.Key)
		}
	}()

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid print job payload")
	}
	if req.Price.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price must not be negative")
	}
	if req.ColorPages+req.BWPages != req.TotalPages {
		return nil, appErrors.Clone(appErrors.ErrValidation, "color and black & white pages must add up to total pages")
	}
	quote := quoteFor(req)
	if !quote.Matches(req.TotalPages, req.ColorPages, req.BWPages, req.Price) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("price does not match quote: expected %s for %d pages", quote.Total.StringFixed(2), quote.TotalPages))
	}

	token, err := newOrderToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate order token")
	}

	now := s.now().UTC()
	order = &models.Order{
		ID:            uuid.NewString(),
		Token:         token,
		RollNumber:    req.RollNumber,
		FileName:      file.OriginalName,
		FileReference: file.Key,
		TotalPages:    quote.TotalPages,
		ColorPages:    quote.ColorPages,
		BWPages:       quote.BWPages,
		Price:         quote.Total.Round(2),
		PrintOptions:  req.PrintOptions,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	audit := models.NewAuditLog(actor, models.AuditActionCreateOrder, models.AuditEntityOrder, order.ID, nil, order.Snapshot())
	if err := s.repo.Create(ctx, order, audit); err != nil {
		s.logger.Error("failed to create order", zap.String("roll_number", req.RollNumber), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create print job")
	}

	s.metrics.OrderCreated()
	s.invalidateReports(ctx)
	s.emit(ctx, models.EventOrderCreated, order, actor, map[string]interface{}{
		"rollNumber": order.RollNumber,
		"totalPages": order.TotalPages,
		"price":      order.Price.StringFixed(2),
	})
	return order, nil
}

// quoteFor prices the request. Without an explicit page selection the declared total is taken
// as the final page count, copies included.
func quoteFor(req dto.CreateOrderRequest) pricing.Breakdown {
	opts := pricing.Options{Color: req.PrintOptions.Color, Copies: req.PrintOptions.Copies}
	if len(req.PrintOptions.SelectedPages) > 0 {
		return pricing.Quote(req.PrintOptions.SelectedPages, opts)
	}
	opts.Copies = 1
	return pricing.QuoteCount(req.TotalPages, opts)
}

// Cancel removes a pending order inside the cancellation window together with its file.
// The file is held aside while the row is deleted and restored if the delete does not commit.
func (s *OrderService) Cancel(ctx context.Context, token string, actor models.Actor) (*models.Order, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "token is required")
	}

	var release, restore func() error
	order, err := s.repo.DeleteLocked(ctx, token, func(o *models.Order) (*models.AuditLog, error) {
		if o.Status != models.OrderStatusPending {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("order is %s and can no longer be cancelled", o.Status))
		}
		if s.now().Sub(o.CreatedAt) > s.config.CancelWindow {
			return nil, appErrors.ErrCancellationExpired
		}
		if o.FileReference != "" {
			rel, res, err := s.blobs.Hold(o.FileReference)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to remove order file")
			}
			release, restore = rel, res
		}
		return models.NewAuditLog(actor, models.AuditActionCancelOrder, models.AuditEntityOrder, o.ID, o.Snapshot(), nil), nil
	})
	if err != nil {
		if restore != nil {
			if rerr := restore(); rerr != nil {
				s.logger.Error("failed to restore held file after cancel rollback", zap.String("token", token), zap.Error(rerr))
			}
		}
		return nil, s.mapOrderError(err, "failed to cancel order")
	}
	if release != nil {
		if err := release(); err != nil {
			s.logger.Warn("failed to release held file", zap.String("key", order.FileReference), zap.Error(err))
		}
	}

	order.Status = models.OrderStatusCancelled
	s.metrics.OrderCancelled()
	s.invalidateReports(ctx)
	s.emit(ctx, models.EventOrderCancelled, order, actor, nil)
	return order, nil
}

// SetStatus changes the fulfilment status of an order on behalf of an operator.
func (s *OrderService) SetStatus(ctx context.Context, id string, status models.OrderStatus, actor models.Actor) (*models.Order, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", status))
	}
	return s.Update(ctx, id, dto.UpdateOrderRequest{Status: &status}, actor)
}

// Update applies an operator override of status and/or payment status.
func (s *OrderService) Update(ctx context.Context, id string, req dto.UpdateOrderRequest, actor models.Actor) (*models.Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid order update payload")
	}
	if req.Status == nil && req.PaymentStatus == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status or paymentStatus is required")
	}

	var from models.OrderStatus
	order, changed, err := s.repo.UpdateLocked(ctx, models.OrderLookup{ID: id}, func(o *models.Order) (*models.AuditLog, error) {
		before := o.Snapshot()
		from = o.Status
		dirty := false
		if req.Status != nil {
			switch orderStatusTransition(o.Status, *req.Status) {
			case transitionApply:
				o.Status = *req.Status
				dirty = true
			case transitionReject:
				return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot move order from %s to %s", o.Status, *req.Status))
			}
		}
		if req.PaymentStatus != nil && operatorPaymentTransition(o.PaymentStatus, *req.PaymentStatus) == transitionApply {
			o.PaymentStatus = *req.PaymentStatus
			dirty = true
		}
		if !dirty {
			return nil, nil
		}
		return models.NewAuditLog(actor, models.AuditActionUpdateOrder, models.AuditEntityOrder, o.ID, before, o.Snapshot()), nil
	})
	if err != nil {
		return nil, s.mapOrderError(err, "failed to update order")
	}
	if !changed {
		return order, nil
	}

	if from != order.Status {
		s.metrics.StatusTransition(string(from), string(order.Status))
	}
	s.invalidateReports(ctx)
	s.emit(ctx, models.EventOrderStatusChanged, order, actor, map[string]interface{}{
		"from":          string(from),
		"to":            string(order.Status),
		"paymentStatus": string(order.PaymentStatus),
	})
	return order, nil
}

// AttachPayment records a new payment attempt on the order and resets its payment status to pending.
func (s *OrderService) AttachPayment(ctx context.Context, token, txnID string, actor models.Actor) (*models.Order, error) {
	order, _, err := s.repo.UpdateLocked(ctx, models.OrderLookup{Token: token}, func(o *models.Order) (*models.AuditLog, error) {
		if o.PaymentStatus == models.PaymentStatusPaid {
			return nil, appErrors.Clone(appErrors.ErrPaymentConflict, "order is already paid")
		}
		if o.Status == models.OrderStatusCancelled {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "order is cancelled")
		}
		before := o.Snapshot()
		o.PaymentID = &txnID
		o.PaymentStatus = models.PaymentStatusPending
		return models.NewAuditLog(actor, models.AuditActionUpdateOrder, models.AuditEntityOrder, o.ID, before, o.Snapshot()), nil
	})
	if err != nil {
		return nil, s.mapOrderError(err, "failed to record payment attempt")
	}
	return order, nil
}

// SetPaymentStatus applies a verified gateway outcome. The transaction id must be the order's current
// payment attempt. Repeating an outcome is a no-op; contradicting one is a conflict.
func (s *OrderService) SetPaymentStatus(ctx context.Context, token, txnID string, status models.PaymentStatus, actor models.Actor) (*models.Order, bool, error) {
	if !status.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid payment status %q", status))
	}
	order, changed, err := s.repo.UpdateLocked(ctx, models.OrderLookup{Token: token}, func(o *models.Order) (*models.AuditLog, error) {
		if o.PaymentID == nil || *o.PaymentID != txnID {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "transaction does not match the current payment attempt")
		}
		switch gatewayPaymentTransition(o.PaymentStatus, status) {
		case transitionNoop:
			return nil, nil
		case transitionReject:
			return nil, appErrors.Clone(appErrors.ErrPaymentConflict, fmt.Sprintf("payment already %s", o.PaymentStatus))
		}
		before := o.Snapshot()
		o.PaymentStatus = status
		return models.NewAuditLog(actor, models.AuditActionUpdateOrder, models.AuditEntityOrder, o.ID, before, o.Snapshot()), nil
	})
	if err != nil {
		return nil, false, s.mapOrderError(err, "failed to update payment status")
	}
	if changed {
		s.invalidateReports(ctx)
		eventType := models.EventPaymentFailed
		if status == models.PaymentStatusPaid {
			eventType = models.EventPaymentSucceeded
		}
		s.emit(ctx, eventType, order, actor, map[string]interface{}{"paymentId": txnID})
	}
	return order, changed, nil
}

// Get returns an order with its audit history.
func (s *OrderService) Get(ctx context.Context, id string) (*models.OrderDetail, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapOrderError(err, "failed to load order")
	}
	trail, err := s.audits.ListByEntity(ctx, models.AuditEntityOrder, order.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	if trail == nil {
		trail = []models.AuditLog{}
	}
	return &models.OrderDetail{Order: *order, AuditTrail: trail}, nil
}

// GetByToken returns the order a customer holds the token for.
func (s *OrderService) GetByToken(ctx context.Context, token string) (*models.Order, error) {
	order, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, s.mapOrderError(err, "failed to load order")
	}
	return order, nil
}

// GetByPaymentID returns the order whose current payment attempt is paymentID.
func (s *OrderService) GetByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	order, err := s.repo.FindByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, s.mapOrderError(err, "failed to load payment")
	}
	return order, nil
}

// ListByRoll returns a student's orders, newest first.
func (s *OrderService) ListByRoll(ctx context.Context, rollNumber string) ([]models.Order, error) {
	orders, err := s.repo.ListByRoll(ctx, rollNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	if len(orders) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no orders found for this roll number")
	}
	return orders, nil
}

// List returns a page of orders for the admin dashboard.
func (s *OrderService) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", *filter.Status))
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// PreviewURL issues a signed link to the order's file.
func (s *OrderService) PreviewURL(ctx context.Context, token string) (*models.PreviewLink, error) {
	order, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	exists, err := s.blobs.Exists(order.FileReference)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to check order file")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	signed, expiresAt, err := s.signer.Generate(order.Token, order.FileReference)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign preview url")
	}
	link := fmt.Sprintf("%s/%s?token=%s", s.config.FilesPath, url.PathEscape(order.FileReference), url.QueryEscape(signed))
	return &models.PreviewLink{PreviewURL: link, ExpiresAt: expiresAt}, nil
}

func (s *OrderService) mapOrderError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "order not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, repository.ErrInvalidLookup) {
		return appErrors.Clone(appErrors.ErrValidation, "order identifier is required")
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *OrderService) discardBlob(key string) {
	if _, err := s.blobs.Delete(key); err != nil {
		s.logger.Error("failed to delete orphaned upload", zap.String("key", key), zap.Error(err))
	}
}

func (s *OrderService) invalidateReports(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, reportCachePattern)
}

func (s *OrderService) emit(ctx context.Context, eventType string, order *models.Order, actor models.Actor, data map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, models.DomainEvent{
		Type:       eventType,
		OrderID:    order.ID,
		OrderToken: order.Token,
		Actor:      actor.Name,
		Data:       data,
	})
}

func newOrderToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
