package docstream

import (
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

var (
	// ErrPositionUnresolvable is returned when the feed can no longer resume
	// from a stored position, usually since it aged out of the feed's
	// retention window. The stored position is reset when this happens.
	ErrPositionUnresolvable = errors.New("change feed position unresolvable", j.C("ERR_6a1d3f0b7c2e9584"))

	// ErrSinkDispatch is matched by errors returned when a sink fails to
	// accept an event. See SinkError.
	ErrSinkDispatch = errors.New("sink dispatch failed", j.C("ERR_d04c2b91a8e37f16"))

	// ErrConnect is returned when connecting to the source fails after
	// all retries.
	ErrConnect = errors.New("source connect failed", j.C("ERR_3f8e6b2d19c0a475"))

	// ErrCredentials is returned when source credentials can't be retrieved.
	ErrCredentials = errors.New("credential retrieval failed", j.C("ERR_b7e05a4c6d21f938"))

	// ErrBootstrapIncomplete is returned when the canary delete event is
	// not observed while bootstrapping a position.
	ErrBootstrapIncomplete = errors.New("canary not observed on change feed", j.C("ERR_5c92e1f7a04b6d38"))

	// ErrInvalidEvent is returned when a change event can't be normalized.
	ErrInvalidEvent = errors.New("invalid change event", j.C("ERR_e1a7c35b9f2d4086"))
)

// SinkError is returned by the Dispatcher when a sink fails. It matches
// ErrSinkDispatch via errors.Is and unwraps to the sink's error.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return "sink " + e.Sink + ": " + e.Err.Error()
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

func (e *SinkError) Is(target error) bool {
	return target == ErrSinkDispatch
}

// IsPositionUnresolvable returns true if the error indicates the stored
// position can no longer be resumed from.
func IsPositionUnresolvable(err error) bool {
	return errors.Is(err, ErrPositionUnresolvable)
}

// IsSinkErr returns true if the error is a sink dispatch failure.
func IsSinkErr(err error) bool {
	return errors.Is(err, ErrSinkDispatch)
}
