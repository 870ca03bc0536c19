package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/go-chi/chi/v5"
)

const idempotencyHeader = "Idempotency-Key"

// Handler exposes HTTP endpoints for carts, orders and payment callbacks.
type Handler struct {
	service *app.Service
	logger  *slog.Logger
}

func NewHandler(service *app.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the API under /v1. authenticate guards every route except the
// payment callback, which the gateway calls without credentials.
func (h *Handler) Register(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/payments/callback", h.paymentCallback)
		r.Get("/payments/callback", h.paymentCallback)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/cart", h.getCart)
			r.Put("/cart/items/{variantID}", h.setCartItem)
			r.Delete("/cart/items/{variantID}", h.removeCartItem)

			r.Post("/orders", h.createOrder)
			r.Get("/orders", h.listOrders)
			r.Get("/orders/{orderID}", h.getOrder)
			r.Post("/orders/{orderID}/cancel", h.cancelOrder)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin(h.logger))
				r.Patch("/orders/{orderID}/status", h.updateStatus)
				r.Post("/orders/{orderID}/payment-expired", h.expirePayment)
			})
		})
	})
}

func (h *Handler) actor(r *http.Request) (domain.Actor, bool) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return domain.Actor{}, false
	}
	return principal.Actor(), true
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if idemKey == "" {
		writeError(w, r, h.logger, fmt.Errorf("%w: %s header required", domain.ErrInvalidRequest, idempotencyHeader))
		return
	}

	stored, err := h.service.GetIdempotentResponse(ctx, actor, idemKey)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if stored != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(stored.StatusCode)
		_, _ = w.Write(stored.Body)
		return
	}

	var payload app.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: invalid JSON payload", domain.ErrInvalidRequest))
		return
	}

	order, err := h.service.CreateOrder(ctx, actor, payload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	body, err := json.Marshal(map[string]any{"order": order})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response := ports.StoredResponse{
		StatusCode: http.StatusCreated,
		Body:       body,
		OrderID:    order.ID,
	}
	if err := h.service.SaveIdempotentResponse(ctx, actor, idemKey, response); err != nil {
		// the order is already committed, so the request still succeeds
		h.logger.WarnContext(ctx, "failed to store idempotent response", "error", err, "order_id", order.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	order, err := h.service.GetOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	query := r.URL.Query()
	input := app.ListOrdersInput{Status: query.Get("status")}

	var err error
	if input.Page, err = intParam(query.Get("page")); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: page must be an integer", domain.ErrInvalidRequest))
		return
	}
	if input.PageSize, err = intParam(query.Get("page_size")); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: page_size must be an integer", domain.ErrInvalidRequest))
		return
	}

	orders, err := h.service.ListOrders(r.Context(), actor, input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	var payload app.CancelOrderInput
	if err := decodeOptional(r, &payload); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	order, err := h.service.CancelOrder(r.Context(), actor, chi.URLParam(r, "orderID"), payload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	var payload app.UpdateStatusInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: invalid JSON payload", domain.ErrInvalidRequest))
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), actor, chi.URLParam(r, "orderID"), payload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) expirePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	order, err := h.service.ExpirePayment(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	cart, err := h.service.GetCart(r.Context(), actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cartView(cart)})
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	var payload app.SetCartItemInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: invalid JSON payload", domain.ErrInvalidRequest))
		return
	}

	cart, err := h.service.SetCartItem(r.Context(), actor, chi.URLParam(r, "variantID"), payload)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cartView(cart)})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	cart, err := h.service.RemoveCartItem(r.Context(), actor, chi.URLParam(r, "variantID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": cartView(cart)})
}

// paymentCallbackRequest mirrors the gateway notification fields. The same
// fields arrive as query parameters on the customer's return redirect.
type paymentCallbackRequest struct {
	Code      string `json:"code"`
	ID        string `json:"id"`
	Cancel    bool   `json:"cancel"`
	Status    string `json:"status"`
	OrderCode int64  `json:"orderCode"`
}

// paymentCallback always answers 200 so the gateway does not keep redelivering
// notifications the service has already decided about.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := parsePaymentCallback(r)
	if err != nil {
		h.logger.WarnContext(ctx, "malformed payment callback", "error", err, "method", r.Method)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	_, err = h.service.HandlePaymentCallback(ctx, domain.PaymentCallback{
		Code:          req.Code,
		TransactionID: req.ID,
		Cancel:        req.Cancel,
		Status:        req.Status,
		OrderCode:     req.OrderCode,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "payment callback failed", "error", err, "order_code", req.OrderCode)
	}

	// The outcome stays in logs and metrics. The body is the same for every order code.
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func parsePaymentCallback(r *http.Request) (paymentCallbackRequest, error) {
	var req paymentCallbackRequest

	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("decode body: %w", err)
		}
		return req, nil
	}

	query := r.URL.Query()
	req.Code = query.Get("code")
	req.ID = query.Get("id")
	req.Status = query.Get("status")
	if cancel := query.Get("cancel"); cancel != "" {
		parsed, err := strconv.ParseBool(cancel)
		if err != nil {
			return req, fmt.Errorf("parse cancel: %w", err)
		}
		req.Cancel = parsed
	}
	code, err := strconv.ParseInt(query.Get("orderCode"), 10, 64)
	if err != nil {
		return req, fmt.Errorf("parse orderCode: %w", err)
	}
	req.OrderCode = code

	return req, nil
}

func cartView(cart domain.Cart) map[string]any {
	lines := cart.Lines
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return map[string]any{
		"user_id":  cart.UserID,
		"lines":    lines,
		"subtotal": cart.Subtotal(),
	}
}

func intParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload", domain.ErrInvalidRequest)
	}
	return nil
}
