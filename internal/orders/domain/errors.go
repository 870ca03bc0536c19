package domain

import "net/http"

// Error is a business failure with a stable code that is safe to render to clients.
type Error struct {
	Code       int
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInternal                  = &Error{Code: 1000, HTTPStatus: http.StatusInternalServerError, Message: "internal server error"}
	ErrCartEmpty                 = &Error{Code: 1001, HTTPStatus: http.StatusUnprocessableEntity, Message: "cart is empty"}
	ErrInsufficientStock         = &Error{Code: 1002, HTTPStatus: http.StatusConflict, Message: "insufficient stock"}
	ErrOrderNotFound             = &Error{Code: 1003, HTTPStatus: http.StatusNotFound, Message: "order not found"}
	ErrOrderNotCancellable       = &Error{Code: 1004, HTTPStatus: http.StatusConflict, Message: "order cannot be cancelled"}
	ErrInvalidStatusTransition   = &Error{Code: 1005, HTTPStatus: http.StatusConflict, Message: "invalid status transition"}
	ErrPaymentCreationFailed     = &Error{Code: 1006, HTTPStatus: http.StatusBadGateway, Message: "payment link could not be created"}
	ErrPaymentCancellationFailed = &Error{Code: 1007, HTTPStatus: http.StatusBadGateway, Message: "payment link could not be cancelled"}
	ErrReasonRequired            = &Error{Code: 1008, HTTPStatus: http.StatusBadRequest, Message: "reason is required"}
	ErrVariantNotFound           = &Error{Code: 1009, HTTPStatus: http.StatusNotFound, Message: "product variant not found"}
	ErrInvalidRequest            = &Error{Code: 1010, HTTPStatus: http.StatusBadRequest, Message: "invalid request"}
	ErrUnauthorized              = &Error{Code: 1011, HTTPStatus: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden                 = &Error{Code: 1012, HTTPStatus: http.StatusForbidden, Message: "forbidden"}
)

// Errors lists every business error kind.
var Errors = []*Error{
	ErrInternal,
	ErrCartEmpty,
	ErrInsufficientStock,
	ErrOrderNotFound,
	ErrOrderNotCancellable,
	ErrInvalidStatusTransition,
	ErrPaymentCreationFailed,
	ErrPaymentCancellationFailed,
	ErrReasonRequired,
	ErrVariantNotFound,
	ErrInvalidRequest,
	ErrUnauthorized,
	ErrForbidden,
}
