package errors

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	ErrRecoverable = errors.New("recoverable err occoured")

	// per packet rejections, never fatal to the poll loop
	ErrMalformed       = errors.New("malformed packet")
	ErrChecksum        = errors.New("checksum mismatch")
	ErrNotForHost      = errors.New("packet not for this host")
	ErrUnknownProtocol = errors.New("unknown protocol")
	ErrPolicy          = errors.New("policy violation")
	ErrNoHandler       = errors.New("no protocol handler")
	ErrPortUnreachable = errors.New("port unreachable")

	// ErrLink driver send/recv failure, fatal to the poll loop
	ErrLink = errors.New("link driver failure")

	// resource errors, surfaced to the caller
	ErrCacheFull = errors.New("cache full")
	ErrHeadroom  = errors.New("insufficient buffer headroom")
	ErrTailroom  = errors.New("insufficient buffer tailroom")
)

func New(msg string) error {
	return errors.New(msg)
}

func Join(err ...error) error {
	return errors.Join(err...)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func NewRecoverable(msg string) error {
	return errors.Join(ErrRecoverable, New(msg))
}

// Drop marks a packet rejection with cause, recoverable by the poll loop.
func Drop(cause error, format string, args ...any) error {
	return errors.Join(ErrRecoverable, pkgerrors.Wrapf(cause, format, args...))
}

// IsRecoverable checks if err only affects the current packet.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// Link marks a driver failure.
func Link(err error, msg string) error {
	return errors.Join(ErrLink, pkgerrors.Wrap(err, msg))
}

func WithStack(err error) error {
	return pkgerrors.WithStack(err)
}

func Wrap(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	return pkgerrors.Wrapf(err, format, args...)
}
