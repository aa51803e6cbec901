package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/pkg/broker"
	"github.com/noah-isme/print-hub-api/pkg/jobs"
)

const eventJobType = "domain_event"

// eventEmitter is what order and payment flows depend on.
type eventEmitter interface {
	Emit(ctx context.Context, event models.DomainEvent)
}

// EventService hands domain events to a background queue that publishes them to the broker.
type EventService struct {
	queue     *jobs.Queue
	publisher broker.Publisher
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService wires the publisher behind a job queue.
func NewEventService(publisher broker.Publisher, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = broker.NewLogPublisher(logger)
	}
	svc := &EventService{publisher: publisher, metrics: metrics, logger: logger, now: time.Now}
	cfg.Logger = logger
	svc.queue = jobs.NewQueue("domain-events", svc.handle, cfg)
	return svc
}

// Start launches the publishing workers.
func (s *EventService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending events and closes the publisher.
func (s *EventService) Stop() {
	s.queue.Stop()
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn("failed to close event publisher", zap.Error(err))
	}
}

// Emit enqueues event without blocking. Events are best effort; a full queue drops the event with a warning.
func (s *EventService) Emit(_ context.Context, event models.DomainEvent) {
	if s == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.queue.Enqueue(jobs.Job{ID: event.ID, Type: eventJobType, Payload: event}); err != nil {
		s.metrics.EventPublished(event.Type, false)
		s.logger.Warn("domain event dropped", zap.String("event_type", event.Type), zap.String("order_id", event.OrderID), zap.Error(err))
	}
}

func (s *EventService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.DomainEvent)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = s.publisher.Publish(ctx, broker.Message{Key: event.OrderID, EventType: event.Type, Value: body})
	s.metrics.EventPublished(event.Type, err == nil)
	return err
}
