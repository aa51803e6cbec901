package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	"github.com/noah-isme/print-hub-api/internal/repository"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

// memOrderRepo serialises every locked operation behind one mutex, standing in for row locks.
type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*models.Order
	audits    []*models.AuditLog
	createErr error
	commitErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*models.Order)}
}

func (r *memOrderRepo) Create(_ context.Context, order *models.Order, audit *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	stored := *order
	r.orders[order.ID] = &stored
	if audit != nil {
		audit.EntityID = order.ID
		r.audits = append(r.audits, audit)
	}
	return nil
}

func (r *memOrderRepo) find(lookup models.OrderLookup) (*models.Order, error) {
	for _, o := range r.orders {
		switch {
		case lookup.ID != "" && o.ID == lookup.ID,
			lookup.Token != "" && o.Token == lookup.Token,
			lookup.PaymentID != "" && o.PaymentID != nil && *o.PaymentID == lookup.PaymentID:
			copied := *o
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memOrderRepo) FindByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(models.OrderLookup{ID: id})
}

func (r *memOrderRepo) FindByToken(_ context.Context, token string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(models.OrderLookup{Token: token})
}

func (r *memOrderRepo) FindByPaymentID(_ context.Context, paymentID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(models.OrderLookup{PaymentID: paymentID})
}

func (r *memOrderRepo) ListByRoll(_ context.Context, rollNumber string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.RollNumber == rollNumber {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) List(_ context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if filter.Status == nil || o.Status == *filter.Status {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (r *memOrderRepo) UpdateLocked(_ context.Context, lookup models.OrderLookup, fn repository.OrderMutation) (*models.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, err := r.find(lookup)
	if err != nil {
		return nil, false, err
	}
	audit, err := fn(order)
	if err != nil {
		return nil, false, err
	}
	if audit == nil {
		return order, false, nil
	}
	stored := *order
	r.orders[order.ID] = &stored
	r.audits = append(r.audits, audit)
	return order, true, nil
}

func (r *memOrderRepo) DeleteLocked(_ context.Context, token string, fn repository.OrderMutation) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, err := r.find(models.OrderLookup{Token: token})
	if err != nil {
		return nil, err
	}
	audit, err := fn(order)
	if err != nil {
		return nil, err
	}
	if r.commitErr != nil {
		return nil, r.commitErr
	}
	delete(r.orders, order.ID)
	if audit != nil {
		r.audits = append(r.audits, audit)
	}
	return order, nil
}

func (r *memOrderRepo) ListByEntity(_ context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.AuditLog
	for i := len(r.audits) - 1; i >= 0; i-- {
		if r.audits[i].EntityType == entityType && r.audits[i].EntityID == entityID {
			out = append(out, *r.audits[i])
		}
	}
	return out, nil
}

func (r *memOrderRepo) auditActions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.audits))
	for _, a := range r.audits {
		out = append(out, a.Action)
	}
	return out
}

type holdFailingStore struct {
	*storage.BlobStore
}

func (holdFailingStore) Hold(string) (func() error, func() error, error) {
	return nil, nil, errors.New("permission denied")
}

type orderFixture struct {
	svc    *OrderService
	repo   *memOrderRepo
	store  *storage.BlobStore
	events *recordingEmitter
	clock  time.Time
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	repo := newMemOrderRepo()
	events := &recordingEmitter{}
	f := &orderFixture{repo: repo, store: store, events: events, clock: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	signer := storage.NewSignedURLSigner("preview-secret", time.Hour)
	f.svc = NewOrderService(repo, repo, store, signer, nil, events, NewMetricsService(), nil, zap.NewNop(), OrderServiceConfig{FilesPath: "/api/files"})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *orderFixture) upload(t *testing.T) *models.FileReference {
	t.Helper()
	info, err := f.store.Put(strings.NewReader("%PDF-1.4"), "notes.pdf")
	require.NoError(t, err)
	return &models.FileReference{Key: info.Key, OriginalName: "notes.pdf", Size: info.Size, MimeType: "application/pdf"}
}

func (f *orderFixture) createOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.svc.Create(context.Background(), validCreateRequest(), f.upload(t), models.Actor{Name: models.ActorCustomer})
	require.NoError(t, err)
	return order
}

func validCreateRequest() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		RollNumber:   "21CS001",
		TotalPages:   4,
		BWPages:      4,
		Price:        decimal.RequireFromString("4.80"),
		PrintOptions: models.PrintOptions{Copies: 1, PaperSize: "A4"},
	}
}

func blobExists(t *testing.T, store *storage.BlobStore, key string) bool {
	t.Helper()
	ok, err := store.Exists(key)
	require.NoError(t, err)
	return ok
}

func TestOrderServiceCreate(t *testing.T) {
	f := newOrderFixture(t)
	file := f.upload(t)

	order, err := f.svc.Create(context.Background(), validCreateRequest(), file, models.Actor{Name: models.ActorCustomer, IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), order.Token)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "4.8", order.Price.String())
	assert.Equal(t, file.Key, order.FileReference)
	assert.Equal(t, f.clock, order.CreatedAt)
	assert.True(t, blobExists(t, f.store, file.Key))
	assert.Equal(t, []string{models.AuditActionCreateOrder}, f.repo.auditActions())
	assert.Equal(t, []string{models.EventOrderCreated}, f.events.types())
}

func TestOrderServiceCreateWithSelectedPagesAndCopies(t *testing.T) {
	f := newOrderFixture(t)
	req := dto.CreateOrderRequest{
		RollNumber:   "21CS002",
		TotalPages:   6,
		ColorPages:   6,
		Price:        decimal.RequireFromString("13.20"),
		PrintOptions: models.PrintOptions{Color: true, Copies: 2, SelectedPages: []int{1, 2, 3, 3}},
	}

	order, err := f.svc.Create(context.Background(), req, f.upload(t), models.Actor{Name: models.ActorCustomer})
	require.NoError(t, err)
	assert.Equal(t, 6, order.ColorPages)
	assert.Equal(t, 0, order.BWPages)
}

func TestOrderServiceCreateRejectsMismatchedQuote(t *testing.T) {
	cases := map[string]func(r *dto.CreateOrderRequest){
		"price too low":     func(r *dto.CreateOrderRequest) { r.Price = decimal.RequireFromString("1.00") },
		"pages do not sum":  func(r *dto.CreateOrderRequest) { r.BWPages = 3 },
		"color claimed":     func(r *dto.CreateOrderRequest) { r.BWPages, r.ColorPages = 0, 4 },
		"negative price":    func(r *dto.CreateOrderRequest) { r.Price = decimal.RequireFromString("-4.80") },
		"missing roll":      func(r *dto.CreateOrderRequest) { r.RollNumber = "" },
		"zero pages":        func(r *dto.CreateOrderRequest) { r.TotalPages, r.BWPages = 0, 0 },
		"unknown paper":     func(r *dto.CreateOrderRequest) { r.PrintOptions.PaperSize = "B5" },
		"too many copies":   func(r *dto.CreateOrderRequest) { r.PrintOptions.Copies = 500 },
		"invalid selection": func(r *dto.CreateOrderRequest) { r.PrintOptions.SelectedPages = []int{0} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newOrderFixture(t)
			file := f.upload(t)
			req := validCreateRequest()
			mutate(&req)

			_, err := f.svc.Create(context.Background(), req, file, models.Actor{Name: models.ActorCustomer})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
			assert.False(t, blobExists(t, f.store, file.Key))
			assert.Empty(t, f.repo.auditActions())
		})
	}
}

func TestOrderServiceCreateDeletesBlobWhenInsertFails(t *testing.T) {
	f := newOrderFixture(t)
	f.repo.createErr = errors.New("connection reset")
	file := f.upload(t)

	_, err := f.svc.Create(context.Background(), validCreateRequest(), file, models.Actor{Name: models.ActorCustomer})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.False(t, blobExists(t, f.store, file.Key))
	assert.Empty(t, f.events.types())
}

func TestOrderServiceCancelWithinWindow(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	f.clock = f.clock.Add(29 * time.Second)

	cancelled, err := f.svc.Cancel(context.Background(), order.Token, models.Actor{Name: models.ActorCustomer})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	_, err = f.svc.GetByToken(context.Background(), order.Token)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.False(t, blobExists(t, f.store, order.FileReference))

	remaining, err := f.store.SweepExpired(0)
	require.NoError(t, err)
	assert.Zero(t, remaining, "held copy should be released")

	assert.Equal(t, []string{models.AuditActionCreateOrder, models.AuditActionCancelOrder}, f.repo.auditActions())
	assert.Equal(t, []string{models.EventOrderCreated, models.EventOrderCancelled}, f.events.types())
}

func TestOrderServiceCancelAfterWindow(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	f.clock = f.clock.Add(31 * time.Second)

	_, err := f.svc.Cancel(context.Background(), order.Token, models.Actor{Name: models.ActorCustomer})
	require.ErrorIs(t, err, appErrors.ErrCancellationExpired)

	kept, err := f.svc.GetByToken(context.Background(), order.Token)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, kept.Status)
	assert.True(t, blobExists(t, f.store, order.FileReference))
}

func TestOrderServiceCancelRequiresPending(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	_, err := f.svc.SetStatus(context.Background(), order.ID, models.OrderStatusProcessing, models.Actor{Name: "desk"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), order.Token, models.Actor{Name: models.ActorCustomer})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.True(t, blobExists(t, f.store, order.FileReference))
}

func TestOrderServiceCancelRestoresBlobWhenCommitFails(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	f.repo.commitErr = errors.New("commit failed")

	_, err := f.svc.Cancel(context.Background(), order.Token, models.Actor{Name: models.ActorCustomer})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	_, err = f.svc.GetByToken(context.Background(), order.Token)
	require.NoError(t, err)
	assert.True(t, blobExists(t, f.store, order.FileReference))
}

func TestOrderServiceCancelKeepsOrderWhenBlobCannotBeRemoved(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	f.svc.blobs = holdFailingStore{f.store}

	_, err := f.svc.Cancel(context.Background(), order.Token, models.Actor{Name: models.ActorCustomer})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrStorage.Code, appErrors.FromError(err).Code)

	_, err = f.svc.GetByToken(context.Background(), order.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{models.AuditActionCreateOrder}, f.repo.auditActions())
}

func TestOrderServiceCancelUnknownToken(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.Cancel(context.Background(), "deadbeef", models.Actor{Name: models.ActorCustomer})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOrderServiceSetStatus(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	actor := models.Actor{Name: "desk"}

	updated, err := f.svc.SetStatus(context.Background(), order.ID, models.OrderStatusCompleted, actor)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, updated.Status)

	_, err = f.svc.SetStatus(context.Background(), order.ID, models.OrderStatusCompleted, actor)
	require.NoError(t, err)

	updated, err = f.svc.SetStatus(context.Background(), order.ID, models.OrderStatusPending, actor)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, updated.Status)

	assert.Equal(t, []string{models.AuditActionCreateOrder, models.AuditActionUpdateOrder, models.AuditActionUpdateOrder}, f.repo.auditActions())

	_, err = f.svc.SetStatus(context.Background(), order.ID, "shipped", actor)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.SetStatus(context.Background(), "missing", models.OrderStatusCompleted, actor)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOrderServiceUpdateOverridesPaymentStatus(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	paid := models.PaymentStatusPaid

	updated, err := f.svc.Update(context.Background(), order.ID, dto.UpdateOrderRequest{PaymentStatus: &paid}, models.Actor{Name: "desk"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	_, err = f.svc.Update(context.Background(), order.ID, dto.UpdateOrderRequest{}, models.Actor{Name: "desk"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOrderServiceSetPaymentStatusIsIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	_, err := f.svc.AttachPayment(context.Background(), order.Token, "TXN_1", models.Actor{Name: models.ActorCustomer})
	require.NoError(t, err)
	gateway := models.Actor{Name: models.ActorGateway}

	updated, changed, err := f.svc.SetPaymentStatus(context.Background(), order.Token, "TXN_1", models.PaymentStatusPaid, gateway)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	_, changed, err = f.svc.SetPaymentStatus(context.Background(), order.Token, "TXN_1", models.PaymentStatusPaid, gateway)
	require.NoError(t, err)
	assert.False(t, changed)

	_, _, err = f.svc.SetPaymentStatus(context.Background(), order.Token, "TXN_1", models.PaymentStatusFailed, gateway)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPaymentConflict.Code, appErrors.FromError(err).Code)

	_, _, err = f.svc.SetPaymentStatus(context.Background(), order.Token, "TXN_OLD", models.PaymentStatusPaid, gateway)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	_, err = f.svc.AttachPayment(context.Background(), order.Token, "TXN_2", models.Actor{Name: models.ActorCustomer})
	assert.Equal(t, appErrors.ErrPaymentConflict.Code, appErrors.FromError(err).Code)

	assert.Equal(t, []string{models.EventOrderCreated, models.EventPaymentSucceeded}, f.events.types())
}

func TestOrderServiceConcurrentPaymentCallbacksApplyOnce(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	_, err := f.svc.AttachPayment(context.Background(), order.Token, "TXN_9", models.Actor{Name: models.ActorCustomer})
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := f.svc.SetPaymentStatus(context.Background(), order.Token, "TXN_9", models.PaymentStatusPaid, models.Actor{Name: models.ActorGateway})
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, applied)
	// create + attach + one paid transition
	assert.Len(t, f.repo.auditActions(), 3)
}

func TestOrderServiceGetIncludesAuditTrail(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)
	_, err := f.svc.SetStatus(context.Background(), order.ID, models.OrderStatusProcessing, models.Actor{Name: "desk"})
	require.NoError(t, err)

	detail, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, detail.AuditTrail, 2)
	assert.Equal(t, models.AuditActionUpdateOrder, detail.AuditTrail[0].Action)
	assert.Equal(t, models.OrderStatusPending, detail.AuditTrail[0].BeforeState.Order.Status)
	assert.Equal(t, models.OrderStatusProcessing, detail.AuditTrail[0].AfterState.Order.Status)
}

func TestOrderServiceListByRoll(t *testing.T) {
	f := newOrderFixture(t)
	f.createOrder(t)

	orders, err := f.svc.ListByRoll(context.Background(), "21CS001")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	_, err = f.svc.ListByRoll(context.Background(), "99XX999")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOrderServiceListPaginates(t *testing.T) {
	f := newOrderFixture(t)
	f.createOrder(t)

	orders, page, err := f.svc.List(context.Background(), models.OrderFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)

	bad := models.OrderStatus("archived")
	_, _, err = f.svc.List(context.Background(), models.OrderFilter{Status: &bad})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOrderServicePreviewURL(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)

	link, err := f.svc.PreviewURL(context.Background(), order.Token)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.PreviewURL, "/api/files/"+order.FileReference+"?token="))
	assert.False(t, link.ExpiresAt.IsZero())

	_, err = f.store.Delete(order.FileReference)
	require.NoError(t, err)
	_, err = f.svc.PreviewURL(context.Background(), order.Token)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
