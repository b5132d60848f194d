package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind classifies a StoreError.
type Kind int

const (
	// KindIO is a storage failure. The collector cannot continue without
	// durable state.
	KindIO Kind = iota
	// KindConstraint is a violated schema constraint, a defect in the merge
	// logic or the input. Only the affected country fails.
	KindConstraint
)

func (k Kind) String() string {
	if k == KindConstraint {
		return "constraint"
	}
	return "io"
}

// StoreError wraps every error returned by Store.
type StoreError struct {
	Kind Kind
	Op   string // e.g. "upsert BJ", "last date TD"
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// wrap classifies err. Errors already wrapped are returned unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	kind := KindIO
	var le *sqlite.Error
	if errors.As(err, &le) && le.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		kind = KindConstraint
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// IsIO reports whether err is a storage failure.
func IsIO(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindIO
}

// IsConstraint reports whether err is a violated constraint.
func IsConstraint(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindConstraint
}
