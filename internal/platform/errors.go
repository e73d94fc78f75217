package platform

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// classify wraps a raw OS error with the matching error class. Errors that
// already carry a class, or have none, are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range []error{ErrNotFound, ErrAccessDenied, ErrLocked, ErrUnsupported} {
		if errors.Is(err, class) {
			return err
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if class, ok := errnoClasses[errno]; ok {
			return fmt.Errorf("%w: %w", class, err)
		}
	}
	return err
}

// Classify is classify for callers outside the package that run raw OS
// calls of their own.
func Classify(err error) error {
	return classify(err)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
