package sst

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Callers match with errors.Is;
// components wrap these with context via fmt.Errorf("...: %w", ...).
var (
	ErrNotFound             = errors.New("not found")
	ErrNotADirectory        = errors.New("not a directory")
	ErrNotAFile             = errors.New("not a file")
	ErrSourceMissing        = fmt.Errorf("source missing: %w", ErrNotFound)
	ErrTruncatedRecord      = errors.New("truncated record")
	ErrOperationCancelled   = errors.New("operation cancelled")
	ErrLinkTargetMissing    = errors.New("link target missing")
	ErrDeletionRepairFailed = errors.New("deletion repair failed")
	ErrIOFailure            = errors.New("i/o failure")
	ErrBusy                 = errors.New("snapshot operation already in progress")
)

// Cancelled converts a context error into ErrOperationCancelled.
// Any other error is returned unchanged.
func Cancelled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrOperationCancelled, err)
	}
	return err
}

// CheckCancelled returns ErrOperationCancelled if ctx is done.
func CheckCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return Cancelled(err)
	}
	return nil
}
