package market

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSymbolNotFound is a permanent failure for unknown tickers.
	ErrSymbolNotFound = errors.New("market: symbol not found")
	// ErrRateLimited reports a provider throttle; it is retried.
	ErrRateLimited = errors.New("market: rate limited")
	// ErrEmptyPayload reports a response without the expected data section.
	ErrEmptyPayload = errors.New("market: empty payload")
	// ErrMissingCredential is returned by builders and clients with no API key.
	ErrMissingCredential = errors.New("market: missing api credential")
)

// StatusError carries a non-2xx HTTP response.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: http status %d: %s", e.Provider, e.Code, body)
}

// Retryable reports 429 and 5xx as transient.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// PayloadError wraps a provider-reported error message found in a 200 body.
type PayloadError struct {
	Provider string
	Symbol   string
	Message  string
	Err      error // one of the sentinel errors above
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Symbol, e.Message)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// Retryable reports rate limits and empty payloads as transient.
func (e *PayloadError) Retryable() bool {
	return errors.Is(e.Err, ErrRateLimited) || errors.Is(e.Err, ErrEmptyPayload)
}
