package queue

import (
	"context"
	"errors"
	"fmt"
)

// Job defines a queue job handler.
type Job interface {
	// Name identifies the job in logs.
	Name() string

	// Type is the message type the job consumes, e.g. "forecast.run".
	Type() string

	// Handle processes one message payload.
	Handle(ctx context.Context, payload interface{}) error
}

// ErrPermanent marks a failure that retrying cannot fix. The worker moves such
// messages to the dead-letter list without scheduling a retry.
var ErrPermanent = errors.New("permanent job failure")

// Permanent wraps err with ErrPermanent. It returns nil for a nil err.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// TypedJob adapts a handler of a decoded payload to Job. Payloads that do not
// decode into T fail permanently.
type TypedJob[T any] struct {
	name    string
	msgType string
	handle  func(ctx context.Context, payload *T) error
}

func NewTypedJob[T any](name, msgType string, handle func(ctx context.Context, payload *T) error) *TypedJob[T] {
	return &TypedJob[T]{name: name, msgType: msgType, handle: handle}
}

func (j *TypedJob[T]) Name() string { return j.name }
func (j *TypedJob[T]) Type() string { return j.msgType }

func (j *TypedJob[T]) Handle(ctx context.Context, payload interface{}) error {
	p, err := ParsePayload[T](payload)
	if err != nil {
		return Permanent(fmt.Errorf("%s: %w", j.name, err))
	}
	return j.handle(ctx, p)
}
