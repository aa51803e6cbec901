package service

import "github.com/noah-isme/print-hub-api/internal/models"

type transitionOutcome int

const (
	transitionReject transitionOutcome = iota
	transitionApply
	transitionNoop
)

type statusPair struct {
	from models.OrderStatus
	to   models.OrderStatus
}

// orderStatusTransitions is the operator policy: any status may move to any other, same to same is a no-op.
var orderStatusTransitions = map[statusPair]transitionOutcome{
	{models.OrderStatusPending, models.OrderStatusPending}:       transitionNoop,
	{models.OrderStatusPending, models.OrderStatusProcessing}:    transitionApply,
	{models.OrderStatusPending, models.OrderStatusCompleted}:     transitionApply,
	{models.OrderStatusPending, models.OrderStatusCancelled}:     transitionApply,
	{models.OrderStatusProcessing, models.OrderStatusPending}:    transitionApply,
	{models.OrderStatusProcessing, models.OrderStatusProcessing}: transitionNoop,
	{models.OrderStatusProcessing, models.OrderStatusCompleted}:  transitionApply,
	{models.OrderStatusProcessing, models.OrderStatusCancelled}:  transitionApply,
	{models.OrderStatusCompleted, models.OrderStatusPending}:     transitionApply,
	{models.OrderStatusCompleted, models.OrderStatusProcessing}:  transitionApply,
	{models.OrderStatusCompleted, models.OrderStatusCompleted}:   transitionNoop,
	{models.OrderStatusCompleted, models.OrderStatusCancelled}:   transitionApply,
	{models.OrderStatusCancelled, models.OrderStatusPending}:     transitionApply,
	{models.OrderStatusCancelled, models.OrderStatusProcessing}:  transitionApply,
	{models.OrderStatusCancelled, models.OrderStatusCompleted}:   transitionApply,
	{models.OrderStatusCancelled, models.OrderStatusCancelled}:   transitionNoop,
}

func orderStatusTransition(from, to models.OrderStatus) transitionOutcome {
	return orderStatusTransitions[statusPair{from, to}]
}

type paymentPair struct {
	from models.PaymentStatus
	to   models.PaymentStatus
}

// gatewayPaymentTransitions governs verified gateway callbacks. A repeated outcome is a no-op,
// a contradicting one is a conflict.
var gatewayPaymentTransitions = map[paymentPair]transitionOutcome{
	{models.PaymentStatusPending, models.PaymentStatusPending}: transitionNoop,
	{models.PaymentStatusPending, models.PaymentStatusPaid}:    transitionApply,
	{models.PaymentStatusPending, models.PaymentStatusFailed}:  transitionApply,
	{models.PaymentStatusPaid, models.PaymentStatusPaid}:       transitionNoop,
	{models.PaymentStatusPaid, models.PaymentStatusFailed}:     transitionReject,
	{models.PaymentStatusFailed, models.PaymentStatusFailed}:   transitionNoop,
	{models.PaymentStatusFailed, models.PaymentStatusPaid}:     transitionReject,
}

func gatewayPaymentTransition(from, to models.PaymentStatus) transitionOutcome {
	return gatewayPaymentTransitions[paymentPair{from, to}]
}

// operatorPaymentTransition is the admin override: anything goes except a no-op.
func operatorPaymentTransition(from, to models.PaymentStatus) transitionOutcome {
	if from == to {
		return transitionNoop
	}
	return transitionApply
}
