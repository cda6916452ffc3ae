package querycache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("querycache: not found")
	// ErrUnsupportedShape is returned by batched reads on tables whose
	// primary key is not a single column.
	ErrUnsupportedShape = errors.New("querycache: unsupported primary key shape")
	// ErrMissingRow matches every *MissingRowError.
	ErrMissingRow = errors.New("querycache: missing row")
)

// NotFoundError is the not-found signal of GetOr404 and FirstOr404.
// It carries enough for a presentation layer to render a 404 or an API error.
type NotFoundError struct {
	Entity    string
	Ident     any       // set by GetOr404
	Predicate Predicate // set by FirstOr404
}

// Subject renders `Entity "ident"`, or `Entity "value"` for a one-field
// predicate, or just the entity name.
func (e *NotFoundError) Subject() string {
	if e.Ident != nil {
		return fmt.Sprintf("%s %q", e.Entity, fmt.Sprint(e.Ident))
	}
	if len(e.Predicate) == 1 {
		for _, v := range e.Predicate {
			return fmt.Sprintf("%s %q", e.Entity, fmt.Sprint(v))
		}
	}
	return e.Entity
}

func (e *NotFoundError) Error() string { return e.Subject() + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MissingRowError is returned by strict GetMany when a requested id has no row.
type MissingRowError struct {
	Entity string
	Ident  any
	Index  int
}

func (e *MissingRowError) Error() string {
	return fmt.Sprintf("querycache: %s %v (index %d) has no row", e.Entity, e.Ident, e.Index)
}

func (e *MissingRowError) Unwrap() error { return ErrMissingRow }

// InvalidateError reports a write-path event that could neither bump the
// key's generation nor remove the cached entry.
type InvalidateError struct {
	Key     string
	BumpErr error
	DelErr  error
}

func (e *InvalidateError) Error() string {
	switch {
	case e.BumpErr != nil && e.DelErr != nil:
		return fmt.Sprintf("invalidate %q failed: gen bump and delete failed: bump=%v; delete=%v",
			e.Key, e.BumpErr, e.DelErr)
	case e.BumpErr != nil:
		return fmt.Sprintf("invalidate %q: gen bump failed: %v", e.Key, e.BumpErr)
	case e.DelErr != nil:
		return fmt.Sprintf("invalidate %q: delete failed: %v", e.Key, e.DelErr)
	default:
		return fmt.Sprintf("invalidate %q: unknown error", e.Key)
	}
}

func (e *InvalidateError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.BumpErr != nil {
		errs = append(errs, e.BumpErr)
	}
	if e.DelErr != nil {
		errs = append(errs, e.DelErr)
	}
	return errs
}
