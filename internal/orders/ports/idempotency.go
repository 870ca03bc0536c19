package ports

import "context"

// StoredResponse is the checkout response replayed when a client reuses an
// Idempotency-Key.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
}

// IdempotencyStore remembers checkout responses per caller-scoped key.
// Save keeps the first response for a key until it expires; Get returns nil for
// unknown or expired keys.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, response StoredResponse) error
}
