package domain

// OrderStatus captures the lifecycle of an order in the system.
type OrderStatus string

const (
	StatusPendingPayment   OrderStatus = "pending_payment"
	StatusPaymentConfirmed OrderStatus = "payment_confirmed"
	StatusOrderConfirmed   OrderStatus = "order_confirmed"
	StatusProcessing       OrderStatus = "processing"
	StatusReadyToShip      OrderStatus = "ready_to_ship"
	StatusShipped          OrderStatus = "shipped"
	StatusOutForDelivery   OrderStatus = "out_for_delivery"
	StatusDelivered        OrderStatus = "delivered"
	StatusPaymentReceived  OrderStatus = "payment_received"
	StatusCompleted        OrderStatus = "completed"
	StatusPaymentFailed    OrderStatus = "payment_failed"
	StatusOnHold           OrderStatus = "on_hold"
	StatusCancelled        OrderStatus = "cancelled"
	StatusReturned         OrderStatus = "returned"
	StatusRefunded         OrderStatus = "refunded"
)

// AllowedTransitions is the adjacency table of the order state machine.
// Statuses mapped to an empty list are terminal.
var AllowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:   {StatusPaymentConfirmed, StatusPaymentFailed, StatusCancelled},
	StatusPaymentConfirmed: {StatusOrderConfirmed, StatusOnHold, StatusCancelled},
	StatusPaymentFailed:    {StatusCancelled},
	StatusOrderConfirmed:   {StatusProcessing, StatusOnHold},
	StatusProcessing:       {StatusReadyToShip, StatusOnHold},
	StatusOnHold:           {StatusProcessing, StatusCancelled},
	StatusReadyToShip:      {StatusShipped},
	StatusShipped:          {StatusOutForDelivery, StatusDelivered},
	StatusOutForDelivery:   {StatusDelivered},
	StatusDelivered:        {StatusPaymentReceived, StatusCompleted, StatusReturned},
	StatusPaymentReceived:  {StatusCompleted, StatusReturned},
	StatusReturned:         {StatusRefunded},
	StatusCompleted:        {},
	StatusCancelled:        {},
	StatusRefunded:         {},
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	_, ok := AllowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine has an edge from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range AllowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal indicates whether the status has no outgoing transitions.
func (s OrderStatus) IsTerminal() bool {
	return s.IsValid() && len(AllowedTransitions[s]) == 0
}

// IsCancellable reports whether a customer-facing cancel is allowed.
func (s OrderStatus) IsCancellable() bool {
	switch s {
	case StatusPendingPayment, StatusPaymentConfirmed, StatusPaymentFailed, StatusOnHold:
		return true
	default:
		return false
	}
}

// RequiresReason reports whether entering s must be accompanied by a reason.
func (s OrderStatus) RequiresReason() bool {
	switch s {
	case StatusReturned, StatusRefunded, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsPaid reports whether s lies on the paid path at or after payment confirmation.
func (s OrderStatus) IsPaid() bool {
	switch s {
	case StatusPaymentConfirmed, StatusOrderConfirmed, StatusProcessing, StatusOnHold,
		StatusReadyToShip, StatusShipped, StatusOutForDelivery, StatusDelivered,
		StatusPaymentReceived, StatusCompleted, StatusReturned, StatusRefunded:
		return true
	default:
		return false
	}
}
