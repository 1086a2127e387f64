package bus

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoHandlerRegistered is returned by Request when no handler matches.
	ErrNoHandlerRegistered = errors.New("no handler registered")
	// ErrTimeout is returned by Request when the handler outlives its timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
	// ErrBusClosed is returned once Shutdown has started.
	ErrBusClosed = errors.New("event bus is closed")
	// ErrPayloadMissing is returned when decoding an absent payload.
	ErrPayloadMissing = errors.New("payload missing")
	// ErrPayloadType is the kind of every PayloadError.
	ErrPayloadType = errors.New("unexpected payload type")
	// ErrResultType is returned by Call when the handler result has the wrong type.
	ErrResultType = errors.New("unexpected result type")
)

// DispatchError attaches the topic to a routing failure.
type DispatchError struct {
	Topic string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("bus %s: %v", e.Topic, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// PayloadError reports a payload that could not be decoded into Want.
type PayloadError struct {
	Topic string
	Want  reflect.Type
	Got   reflect.Type
	Err   error
}

func (e *PayloadError) Error() string {
	switch {
	case e.Got != nil:
		return fmt.Sprintf("bus %s: payload is %v, want %v", e.Topic, e.Got, e.Want)
	case e.Err != nil:
		return fmt.Sprintf("bus %s: decode %v: %v", e.Topic, e.Want, e.Err)
	default:
		return fmt.Sprintf("bus %s: decode %v", e.Topic, e.Want)
	}
}

// Is matches ErrPayloadType so callers need not know the concrete type.
func (e *PayloadError) Is(target error) bool {
	return target == ErrPayloadType
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}
