package apiclient

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a FetchError.
type Kind int

const (
	// KindNetwork: transport failure, timeout, 5xx or 408. Retried.
	KindNetwork Kind = iota
	// KindRateLimited: 429. Retried, honouring Retry-After.
	KindRateLimited
	// KindUpstream: any other 4xx. Not retried.
	KindUpstream
	// KindParse: the response did not have the expected shape. Not retried.
	KindParse
	// KindCircuitOpen: the shared breaker is open, no request was sent.
	KindCircuitOpen
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream_rejected"
	case KindParse:
		return "parse_error"
	case KindCircuitOpen:
		return "circuit_open"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Transient reports whether errors of this kind are retried.
func (k Kind) Transient() bool { return k == KindNetwork || k == KindRateLimited }

// FetchError is returned by Fetch for every failure except context
// cancellation, which is returned as ctx.Err() wrapped.
type FetchError struct {
	Kind       Kind
	StatusCode int           // 0 when no response was received
	RetryAfter time.Duration // upstream delay hint on 429
	Attempts   int           // requests sent, including the failing one
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("apiclient: %s (HTTP %d) after %d attempt(s): %v", e.Kind, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("apiclient: %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrCircuitOpen is the cause of KindCircuitOpen errors.
var ErrCircuitOpen = errors.New("upstream circuit breaker open")

// KindOf returns the kind of a FetchError in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}
