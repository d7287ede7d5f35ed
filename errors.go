// Package aesdlog implements a bounded, command-indexed append log with a
// device-surface front end (read/write/seek/ioctl over a circular log of
// newline-terminated entries) and a concurrent TCP line server built on top
// of it. See spec.md for the full protocol and internal/* for the pieces
// that make it up.
package aesdlog

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/aesdlog/aesdlogd/internal/circularlog"
	"github.com/aesdlog/aesdlogd/internal/framer"
)

// Code represents one of the error kinds from spec.md §7's taxonomy.
type Code string

const (
	CodeTransientIO       Code = "transient I/O"
	CodePeerClosed        Code = "peer closed"
	CodeResourceExhausted Code = "resource exhausted"
	CodeFrameTooLarge     Code = "frame too large"
	CodeInvalidArg        Code = "invalid argument"
	CodeOutOfRange        Code = "out of range"
	CodeInterrupted       Code = "interrupted"
	CodeFatal             Code = "fatal"
)

// Error lets a bare Code be used as an errors.Is target.
func (c Code) Error() string {
	return string(c)
}

// Error is a structured error with context and optional errno mapping,
// mirroring the teacher's ublk.Error shape (op/device/queue/errno/code).
// This domain has no device or queue number, so those fields are dropped
// and no other identifying field takes their place.
type Error struct {
	Op    string // operation that failed, e.g. "read", "seek", "ioctl"
	Code  Code
	Errno syscall.Errno // 0 if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("aesdlog: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("aesdlog: %s", msg)
}

// Unwrap supports errors.Is/As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison by Code, matching either another *Error
// or a bare Code value.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if c, ok := target.(Code); ok {
		return e.Code == c
	}
	var te *Error
	if errors.As(target, &te) {
		return e.Code == te.Code
	}
	return false
}

// NewError builds a structured Error with no wrapped cause.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// WrapError wraps inner with op, mapping circularlog/framer sentinel errors
// and syscall.Errno values onto this package's Code taxonomy. A nil inner
// returns nil.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if te, ok := inner.(*Error); ok {
		return &Error{Op: op, Code: te.Code, Errno: te.Errno, Msg: te.Msg, Inner: te.Inner}
	}

	switch {
	case errors.Is(inner, circularlog.ErrOutOfRange):
		return &Error{Op: op, Code: CodeOutOfRange, Msg: inner.Error(), Inner: inner}
	case errors.Is(inner, framer.ErrFrameTooLarge):
		return &Error{Op: op, Code: CodeFrameTooLarge, Msg: inner.Error(), Inner: inner}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{Op: op, Code: mapErrnoToCode(errno), Errno: errno, Msg: errno.Error(), Inner: inner}
	}

	return &Error{Op: op, Code: CodeTransientIO, Msg: inner.Error(), Inner: inner}
}

func mapErrnoToCode(errno syscall.Errno) Code {
	switch errno {
	case syscall.EINVAL, syscall.E2BIG:
		return CodeInvalidArg
	case syscall.ENOMEM, syscall.ENOSPC:
		return CodeResourceExhausted
	case syscall.EINTR:
		return CodeInterrupted
	case syscall.EPIPE, syscall.ECONNRESET:
		return CodePeerClosed
	default:
		return CodeTransientIO
	}
}

// IsCode reports whether err is (or wraps) an *Error with the given Code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
