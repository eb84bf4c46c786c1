// Package xerrors records where an error was created or annotated so the
// logger can print a source location with it.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// stackDepth bounds the frames kept by New.
const stackDepth = 48

// rooted is an error created in this codebase. It carries the stack of the
// call that made it.
type rooted struct {
	error
	stack []uintptr
}

func (e *rooted) Unwrap() error       { return e.error }
func (e *rooted) StackPCs() []uintptr { return e.stack }

// annotated adds context to an error from elsewhere. Only the annotating
// call site is kept.
type annotated struct {
	cause error
	note  string
	at    uintptr
}

func (e *annotated) Error() string { return e.note + ": " + e.cause.Error() }
func (e *annotated) Unwrap() error { return e.cause }
func (e *annotated) PC() uintptr   { return e.at }

// callers skips runtime.Callers, this function and its caller's caller.
func callers() []uintptr {
	pcs := make([]uintptr, stackDepth)
	return pcs[:runtime.Callers(3, pcs)]
}

func caller() uintptr {
	var pc [1]uintptr
	if runtime.Callers(3, pc[:]) == 0 {
		return 0
	}
	return pc[0]
}

func New(msg string) error {
	return &rooted{error: errors.New(msg), stack: callers()}
}

func Newf(format string, args ...any) error {
	return &rooted{error: fmt.Errorf(format, args...), stack: callers()}
}

// Wrap prefixes err with msg. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &annotated{cause: err, note: msg, at: caller()}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &annotated{cause: err, note: fmt.Sprintf(format, args...), at: caller()}
}
