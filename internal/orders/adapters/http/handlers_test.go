package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dejobratic/storefront/internal/auth"
	idemmemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	httpadapter "github.com/dejobratic/storefront/internal/orders/adapters/http"
	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/payment/fake"
	"github.com/dejobratic/storefront/internal/rabbitmq"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type server struct {
	t       *testing.T
	router  chi.Router
	store   *memory.Store
	gateway *fake.Gateway
	tokens  *auth.TokenService
}

func newServer(t *testing.T) *server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	store.PutVariant(domain.Variant{ID: "v-1", SKU: "TEE", Price: decimal.RequireFromString("10.00"), Stock: 5})
	gateway := fake.New()

	m, err := metrics.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	httpMetrics, err := httpadapter.NewMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	service := app.NewService(app.Dependencies{
		UnitOfWork:  store,
		Orders:      store,
		Carts:       store,
		Gateway:     gateway,
		Events:      rabbitmq.NewNoopEventBus(logger),
		Idempotency: idemmemory.NewStore(time.Hour),
		Logger:      logger,
		Metrics:     m,
		ShippingRates: map[domain.ShippingMethod]decimal.Decimal{
			domain.ShippingStandard: decimal.RequireFromString("3.00"),
		},
	})

	tokens, err := auth.NewTokenService("test-secret", "storefront", time.Hour)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(httpadapter.WithRecovery(logger), httpadapter.WithMetrics(httpMetrics))
	httpadapter.NewHandler(service, logger).Register(router, httpadapter.Authenticate(tokens, logger))

	return &server{t: t, router: router, store: store, gateway: gateway, tokens: tokens}
}

func (s *server) token(userID string, role auth.Role) string {
	s.t.Helper()
	token, err := s.tokens.Issue(auth.Principal{UserID: userID, Role: role})
	require.NoError(s.t, err)
	return token
}

func (s *server) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type orderEnvelope struct {
	Order domain.Order `json:"order"`
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, want *domain.Error) {
	t.Helper()
	assert.Equal(t, want.HTTPStatus, rec.Code)
	body := decode[errorEnvelope](t, rec)
	assert.Equal(t, want.Code, body.Error.Code)
	assert.Equal(t, want.Message, body.Error.Message)
}

func (s *server) checkout(token, key, method string) *httptest.ResponseRecorder {
	s.t.Helper()
	return s.do(http.MethodPost, "/v1/orders", token,
		map[string]string{"shipping_address_id": "addr-1", "payment_method": method},
		"Idempotency-Key", key,
	)
}

func TestAuthentication(t *testing.T) {
	s := newServer(t)

	t.Run("rejects missing token", func(t *testing.T) {
		assertError(t, s.do(http.MethodGet, "/v1/orders", "", nil), domain.ErrUnauthorized)
	})

	t.Run("rejects bad token", func(t *testing.T) {
		assertError(t, s.do(http.MethodGet, "/v1/cart", "not-a-token", nil), domain.ErrUnauthorized)
	})

	t.Run("forbids customers on admin routes", func(t *testing.T) {
		rec := s.do(http.MethodPatch, "/v1/admin/orders/any/status", s.token("user-1", auth.RoleCustomer),
			map[string]string{"status": "processing"})
		assertError(t, rec, domain.ErrForbidden)
	})
}

func TestCheckout(t *testing.T) {
	s := newServer(t)
	customer := s.token("user-1", auth.RoleCustomer)

	t.Run("empty cart is unprocessable", func(t *testing.T) {
		assertError(t, s.checkout(customer, "empty", "cod"), domain.ErrCartEmpty)
	})

	t.Run("requires idempotency key", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/orders", customer, map[string]string{"shipping_address_id": "a", "payment_method": "cod"})
		assertError(t, rec, domain.ErrInvalidRequest)
	})

	t.Run("unknown variant cannot be added", func(t *testing.T) {
		rec := s.do(http.MethodPut, "/v1/cart/items/nope", customer, map[string]int{"quantity": 1})
		assertError(t, rec, domain.ErrVariantNotFound)
	})

	t.Run("creates order once per key", func(t *testing.T) {
		rec := s.do(http.MethodPut, "/v1/cart/items/v-1", customer, map[string]int{"quantity": 2})
		require.Equal(t, http.StatusOK, rec.Code)

		first := s.checkout(customer, "checkout-1", "cod")
		require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
		order := decode[orderEnvelope](t, first).Order
		assert.Equal(t, domain.StatusPendingPayment, order.Status)
		assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("23.00")))

		replay := s.checkout(customer, "checkout-1", "cod")
		assert.Equal(t, http.StatusCreated, replay.Code)
		assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
		assert.Equal(t, first.Body.String(), replay.Body.String())

		variant, _ := s.store.Variant("v-1")
		assert.Equal(t, 3, variant.Stock)
	})

	t.Run("insufficient stock conflicts", func(t *testing.T) {
		s.do(http.MethodPut, "/v1/cart/items/v-1", customer, map[string]int{"quantity": 10})
		assertError(t, s.checkout(customer, "checkout-2", "cod"), domain.ErrInsufficientStock)
	})
}

func TestOrderAccess(t *testing.T) {
	s := newServer(t)
	owner := s.token("user-1", auth.RoleCustomer)
	stranger := s.token("user-2", auth.RoleCustomer)
	admin := s.token("admin-1", auth.RoleAdmin)

	s.do(http.MethodPut, "/v1/cart/items/v-1", owner, map[string]int{"quantity": 1})
	created := decode[orderEnvelope](t, s.checkout(owner, "k", "cod")).Order
	path := "/v1/orders/" + created.ID

	t.Run("owner can read", func(t *testing.T) {
		rec := s.do(http.MethodGet, path, owner, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, created.ID, decode[orderEnvelope](t, rec).Order.ID)
	})

	t.Run("stranger sees not found", func(t *testing.T) {
		assertError(t, s.do(http.MethodGet, path, stranger, nil), domain.ErrOrderNotFound)
		assertError(t, s.do(http.MethodPost, path+"/cancel", stranger, nil), domain.ErrOrderNotFound)
	})

	t.Run("lists only own orders", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/orders", stranger, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[struct {
			Orders []domain.Order `json:"orders"`
		}](t, rec)
		assert.Empty(t, body.Orders)

		assertError(t, s.do(http.MethodGet, "/v1/orders?page=abc", owner, nil), domain.ErrInvalidRequest)
	})

	t.Run("admin moves order along and rejects skips", func(t *testing.T) {
		rec := s.do(http.MethodPatch, "/v1/admin/orders/"+created.ID+"/status", admin,
			map[string]string{"status": "shipped"})
		assertError(t, rec, domain.ErrInvalidStatusTransition)

		rec = s.do(http.MethodPatch, "/v1/admin/orders/"+created.ID+"/status", admin,
			map[string]string{"status": "payment_confirmed"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, domain.StatusPaymentConfirmed, decode[orderEnvelope](t, rec).Order.Status)
	})

	t.Run("owner cancels with reason", func(t *testing.T) {
		rec := s.do(http.MethodPost, path+"/cancel", owner, map[string]string{"reason": "changed my mind"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		order := decode[orderEnvelope](t, rec).Order
		assert.Equal(t, domain.StatusCancelled, order.Status)
		require.NotNil(t, order.Reason)

		assertError(t, s.do(http.MethodPost, path+"/cancel", owner, nil), domain.ErrOrderNotCancellable)
	})
}

func TestPaymentCallback(t *testing.T) {
	s := newServer(t)
	customer := s.token("user-1", auth.RoleCustomer)

	s.do(http.MethodPut, "/v1/cart/items/v-1", customer, map[string]int{"quantity": 1})
	created := decode[orderEnvelope](t, s.checkout(customer, "k", "online")).Order
	require.NotNil(t, created.PaymentLink)

	callback := map[string]any{"code": "00", "id": "txn-1", "cancel": false, "status": "PAID", "orderCode": created.Code}
	status := func() domain.OrderStatus {
		return decode[orderEnvelope](t, s.do(http.MethodGet, "/v1/orders/"+created.ID, customer, nil)).Order.Status
	}
	assertAcknowledged := func(t *testing.T, rec *httptest.ResponseRecorder) {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	}

	t.Run("unverified and unknown orders get the same answer", func(t *testing.T) {
		known := s.do(http.MethodPost, "/v1/payments/callback", "", callback)
		unknown := s.do(http.MethodPost, "/v1/payments/callback", "",
			map[string]any{"code": "00", "status": "PAID", "orderCode": 1})

		assertAcknowledged(t, known)
		assertAcknowledged(t, unknown)
		assert.Equal(t, known.Body.String(), unknown.Body.String())
		assert.Equal(t, domain.StatusPendingPayment, status())
	})

	t.Run("forged cancellation leaves order pending", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/v1/payments/callback", "",
			map[string]any{"code": "01", "cancel": true, "status": "CANCELLED", "orderCode": created.Code})

		assertAcknowledged(t, rec)
		assert.Equal(t, domain.StatusPendingPayment, status())
	})

	t.Run("applies paid callback", func(t *testing.T) {
		require.NoError(t, s.gateway.MarkPaid(created.Code))

		assertAcknowledged(t, s.do(http.MethodPost, "/v1/payments/callback", "", callback))
		assert.Equal(t, domain.StatusPaymentConfirmed, status())
	})

	t.Run("redelivery is acknowledged without change", func(t *testing.T) {
		assertAcknowledged(t, s.do(http.MethodPost, "/v1/payments/callback", "", callback))
		assert.Equal(t, domain.StatusPaymentConfirmed, status())
	})

	t.Run("return redirect uses query parameters", func(t *testing.T) {
		path := fmt.Sprintf("/v1/payments/callback?code=00&id=txn-1&cancel=true&status=CANCELLED&orderCode=%d", created.Code)
		assertAcknowledged(t, s.do(http.MethodGet, path, "", nil))
		assert.Equal(t, domain.StatusPaymentConfirmed, status())
	})

	t.Run("malformed callback still answers 200", func(t *testing.T) {
		assertAcknowledged(t, s.do(http.MethodGet, "/v1/payments/callback?orderCode=abc", "", nil))
	})
}

func TestExpirePayment(t *testing.T) {
	s := newServer(t)
	customer := s.token("user-1", auth.RoleCustomer)
	admin := s.token("admin-1", auth.RoleAdmin)

	s.do(http.MethodPut, "/v1/cart/items/v-1", customer, map[string]int{"quantity": 1})
	created := decode[orderEnvelope](t, s.checkout(customer, "k", "online")).Order
	path := "/v1/admin/orders/" + created.ID + "/payment-expired"

	t.Run("customers are forbidden", func(t *testing.T) {
		assertError(t, s.do(http.MethodPost, path, customer, nil), domain.ErrForbidden)
	})

	t.Run("admin fails the payment and voids the link", func(t *testing.T) {
		rec := s.do(http.MethodPost, path, admin, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, domain.StatusPaymentFailed, decode[orderEnvelope](t, rec).Order.Status)

		payment, ok := s.gateway.Payment(created.Code)
		require.True(t, ok)
		assert.Equal(t, domain.PaymentStateCancelled, payment.State)
	})

	t.Run("second expiry is an invalid transition", func(t *testing.T) {
		assertError(t, s.do(http.MethodPost, path, admin, nil), domain.ErrInvalidStatusTransition)
	})
}
