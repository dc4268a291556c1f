package variant

import (
	"errors"
	"fmt"

	"github.com/stacklok/syncstate/internal/resource"
)

// ErrDisposed is returned when a disposed tree is refreshed
var ErrDisposed = errors.New("variant tree disposed")

// BackendError reports that fetching one refresh root failed. Sibling roots
// are unaffected.
type BackendError struct {
	Root resource.Path
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("failed to refresh %s: %v", e.Root, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// FailedRoots extracts the roots of all BackendErrors wrapped in err
func FailedRoots(err error) []resource.Path {
	if err == nil {
		return nil
	}
	var roots []resource.Path
	var walk func(error)
	walk = func(e error) {
		switch multi := e.(type) {
		case interface{ WrappedErrors() []error }:
			for _, inner := range multi.WrappedErrors() {
				walk(inner)
			}
			return
		case interface{ Unwrap() []error }:
			for _, inner := range multi.Unwrap() {
				walk(inner)
			}
			return
		}
		var be *BackendError
		if errors.As(e, &be) {
			roots = append(roots, be.Root)
		}
	}
	walk(err)
	return roots
}
