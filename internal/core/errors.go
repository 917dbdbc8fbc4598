package core

import (
	"errors"
	"fmt"
)

// ErrUnknownPackage is returned when a declared dependency names a package
// the registry does not know about.
var ErrUnknownPackage = errors.New("unknown package")

// ErrWildcardConstraint is returned when a declaration uses the
// unconstrained wildcard requirement.
var ErrWildcardConstraint = errors.New("wildcard constraint not allowed")

// UnknownPackageError wraps ErrUnknownPackage with the offending name.
type UnknownPackageError struct {
	Name string
}

func (e *UnknownPackageError) Error() string {
	return fmt.Sprintf("no known package named %q", e.Name)
}

func (e *UnknownPackageError) Unwrap() error {
	return ErrUnknownPackage
}

// WildcardConstraintError wraps ErrWildcardConstraint with the dependency
// that declared it.
type WildcardConstraintError struct {
	Name string
}

func (e *WildcardConstraintError) Error() string {
	return fmt.Sprintf("wildcard (`*`) dependency constraints are not allowed on this registry; "+
		"declare a bounded requirement for %q instead", e.Name)
}

func (e *WildcardConstraintError) Unwrap() error {
	return ErrWildcardConstraint
}

// MalformedConstraintError is returned when a requirement string fails to
// parse. It wraps the parser's error.
type MalformedConstraintError struct {
	Name string
	Req  string
	Err  error
}

func (e *MalformedConstraintError) Error() string {
	return fmt.Sprintf("invalid requirement %q for dependency %q: %v", e.Req, e.Name, e.Err)
}

func (e *MalformedConstraintError) Unwrap() error {
	return e.Err
}

// DuplicateDependencyError is returned when one submission declares the
// same target package with the same kind more than once.
type DuplicateDependencyError struct {
	Name string
	Kind Kind
}

func (e *DuplicateDependencyError) Error() string {
	return fmt.Sprintf("dependency %q (%s) declared more than once", e.Name, e.Kind)
}

// CorruptRecordError describes a stored dependency row that fails to map
// back to a record. It is carried by panic: the row was validated before it
// was written, so failing to rebuild it signals a prior invariant violation
// upstream, not a condition the read path can recover from.
type CorruptRecordError struct {
	ID     int64
	Field  string
	Detail string
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("corrupt dependency row %d: bad %s: %s", e.ID, e.Field, e.Detail)
}
