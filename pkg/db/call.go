package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPersistence marks store failures that are not expected domain outcomes.
var ErrPersistence = errors.New("persistence_error")

// WrapPersistence tags err with ErrPersistence while keeping the driver error
// reachable through errors.Is/As.
func WrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// WithCallTimeout bounds a single store or network call. A non-positive
// timeout leaves the parent deadline in charge.
func WithCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
