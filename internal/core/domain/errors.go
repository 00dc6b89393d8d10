package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRejectedInput marks user-correctable input failures (guard rejections,
	// unknown providers, disallowed models).
	ErrRejectedInput = errors.New("rejected input")
	// ErrRetrievalUnavailable marks embedding or index failures.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGenerationFailure marks provider errors during generation.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrConfiguration marks missing credentials or broken wiring.
	ErrConfiguration = errors.New("configuration error")
	// ErrTemporary marks transient failures worth retrying upstream.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
