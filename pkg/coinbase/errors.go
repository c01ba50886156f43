package coinbase

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth is returned when credential material is missing or malformed.
	ErrAuth = errors.New("auth error")

	// ErrFetch covers transport failures and malformed, empty or rejected
	// market-data responses.
	ErrFetch = errors.New("fetch error")
)

// APIError is a non-2xx response from the exchange. The body is kept as
// received so callers can interpret exchange-specific payloads themselves.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("exchange responded with %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("exchange responded with %d", e.StatusCode)
}
