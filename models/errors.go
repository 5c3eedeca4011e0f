package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData means the provider returned neither bars nor a price
	ErrNoData = errors.New("no data available")
	// ErrUpstreamUnavailable means no data exists for the ticker at any attempted granularity
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamTimeout means the provider did not answer within the call timeout
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// UpstreamError records which ticker and parameters a provider failure belongs to
type UpstreamError struct {
	Ticker string
	Params string
	Kind   error
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s %s]: %v", e.Kind, e.Ticker, e.Params, e.Err)
	}
	return fmt.Sprintf("%s [%s %s]", e.Kind, e.Ticker, e.Params)
}

// Is matches against the failure kind so callers can use errors.Is with the sentinels
func (e *UpstreamError) Is(target error) bool {
	return target == e.Kind
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError builds an UpstreamError of the given kind
func NewUpstreamError(kind error, ticker, params string, err error) *UpstreamError {
	return &UpstreamError{Ticker: ticker, Params: params, Kind: kind, Err: err}
}
