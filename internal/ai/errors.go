package ai

import (
	"errors"
	"fmt"
)

// ErrUpstream is matched by every UpstreamError
var ErrUpstream = errors.New("ai upstream failure")

// UpstreamError wraps any failure of an AI call: transport, timeout, provider
// status, or a payload that failed schema validation. Callers treat all of
// them the same way.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func upstream(op string, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
