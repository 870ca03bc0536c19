package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderCreated struct {
	OrderID     string          `json:"order_id"`
	OrderCode   int64           `json:"order_code"`
	UserID      string          `json:"user_id"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func NewOrderCreated(o Order) OrderCreated {
	return OrderCreated{
		OrderID:     o.ID,
		OrderCode:   o.Code,
		UserID:      o.UserID,
		Status:      o.Status,
		TotalAmount: o.TotalAmount,
		OccurredAt:  o.OrderedAt,
	}
}

type OrderStatusChanged struct {
	OrderID    string      `json:"order_id"`
	OrderCode  int64       `json:"order_code"`
	UserID     string      `json:"user_id"`
	From       OrderStatus `json:"from"`
	To         OrderStatus `json:"to"`
	Reason     string      `json:"reason,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

func NewOrderStatusChanged(o Order, change StatusChange) OrderStatusChanged {
	event := OrderStatusChanged{
		OrderID:    o.ID,
		OrderCode:  o.Code,
		UserID:     o.UserID,
		From:       change.From,
		To:         change.To,
		OccurredAt: change.At,
	}
	if change.Reason != nil {
		event.Reason = *change.Reason
	}
	return event
}
