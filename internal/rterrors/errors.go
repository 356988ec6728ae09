// Package rterrors defines the runtime's error taxonomy (spec §7).
//
// Every sentinel here is wrapped with fmt.Errorf("...: %w", Sentinel) at the
// call site, following the teacher repository's convention of typed,
// wrappable errors (infrastructure/errors) rather than bare string errors.
package rterrors

import (
	"errors"
	"fmt"
)

// Taxonomy sentinels. Use errors.Is against these, never string matching.
var (
	// ErrResolve covers module-not-found and unknown-builtin failures (§4.4).
	ErrResolve = errors.New("module resolution failed")

	// ErrSyntax covers source that failed to parse or compile.
	ErrSyntax = errors.New("script failed to compile")

	// ErrIO covers file, DNS, connect, read, and write failures.
	ErrIO = errors.New("i/o failure")

	// ErrType covers host-API argument-shape violations.
	ErrType = errors.New("type error")

	// ErrFatal covers reactor init/close failure and allocation failure during
	// runtime construction. Callers of functions documented to return ErrFatal
	// should treat it as unrecoverable and abort the process with a diagnostic.
	ErrFatal = errors.New("fatal runtime error")
)

// Resolve wraps err as a module-resolution failure.
func Resolve(format string, args ...any) error {
	return wrap(ErrResolve, format, args...)
}

// Syntax wraps err as a compile failure.
func Syntax(format string, args ...any) error {
	return wrap(ErrSyntax, format, args...)
}

// IO wraps err as an I/O failure.
func IO(format string, args ...any) error {
	return wrap(ErrIO, format, args...)
}

// Type wraps err as a host-API type violation.
func Type(format string, args ...any) error {
	return wrap(ErrType, format, args...)
}

// Fatal wraps err as an unrecoverable runtime failure.
func Fatal(format string, args ...any) error {
	return wrap(ErrFatal, format, args...)
}

func wrap(sentinel error, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &taxonomyError{sentinel: sentinel, msg: msg}
}

type taxonomyError struct {
	sentinel error
	msg      string
}

func (e *taxonomyError) Error() string { return e.msg }
func (e *taxonomyError) Unwrap() error { return e.sentinel }
