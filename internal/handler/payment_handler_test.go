package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
)

type paymentServiceStub struct {
	initiateReq dto.InitiatePaymentRequest
	callbacks   []models.PaymentCallback
	callbackErr error
}

func (s *paymentServiceStub) Initiate(_ context.Context, req dto.InitiatePaymentRequest, _ models.Actor) (*models.PaymentInitiation, error) {
	s.initiateReq = req
	return &models.PaymentInitiation{ProcessURL: "https://gateway.test/process", TxnID: "TXN_1", Params: map[string]string{"MID": "MID001"}}, nil
}

func (s *paymentServiceStub) HandleCallback(_ context.Context, cb models.PaymentCallback) (*models.Order, error) {
	s.callbacks = append(s.callbacks, cb)
	return nil, s.callbackErr
}

func (s *paymentServiceStub) Verify(_ context.Context, paymentID string) (*models.PaymentVerification, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
}

func TestPaymentHandlerProcess(t *testing.T) {
	svc := &paymentServiceStub{}
	h := NewPaymentHandler(svc, zap.NewNop())
	c, w := newGinContext(http.MethodPost, "/payment/process", []byte(`{"orderId":"tok","amount":"4.80","rollNumber":"21CS001"}`))

	h.Process(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok", svc.initiateReq.OrderID)
	assert.Equal(t, "4.8", svc.initiateReq.Amount.String())
	assert.Contains(t, w.Body.String(), "TXN_1")
}

func TestPaymentHandlerCallbackAcceptsForm(t *testing.T) {
	svc := &paymentServiceStub{}
	h := NewPaymentHandler(svc, zap.NewNop())
	form := url.Values{
		"ORDERID":      {"tok"},
		"TXNID":        {"TXN_1"},
		"TXNAMOUNT":    {"4.80"},
		"STATUS":       {models.GatewayStatusSuccess},
		"CHECKSUMHASH": {"abc"},
	}
	c, w := newGinContextWithBody(http.MethodPost, "/payment/callback", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))

	h.Callback(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	require.Len(t, svc.callbacks, 1)
	assert.Equal(t, models.PaymentCallback{OrderID: "tok", TxnID: "TXN_1", TxnAmount: "4.80", Status: models.GatewayStatusSuccess, ChecksumHash: "abc"}, svc.callbacks[0])
}

func TestPaymentHandlerCallbackAlwaysAcknowledges(t *testing.T) {
	svc := &paymentServiceStub{callbackErr: appErrors.ErrChecksumMismatch}
	h := NewPaymentHandler(svc, zap.NewNop())
	c, w := newGinContext(http.MethodPost, "/payment/callback", []byte(`{"ORDERID":"tok","TXNID":"TXN_1","STATUS":"TXN_FAILURE","CHECKSUMHASH":"bad"}`))

	h.Callback(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Len(t, svc.callbacks, 1)
}

func TestPaymentHandlerVerifyNotFound(t *testing.T) {
	h := NewPaymentHandler(&paymentServiceStub{}, zap.NewNop())
	c, w := newGinContext(http.MethodGet, "/payment/verify/TXN_9", nil)
	c.Params = append(c.Params, ginParam("paymentId", "TXN_9"))

	h.Verify(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
