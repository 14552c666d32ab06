package types

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. None of them are retried.
type Kind int

const (
	KindIO Kind = iota + 1
	KindProtocol
	KindCodec
	KindConfig
)

var (
	ErrIO       = errors.New("io error")
	ErrProtocol = errors.New("protocol error")
	ErrCodec    = errors.New("codec error")
	ErrConfig   = errors.New("config error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindProtocol:
		return ErrProtocol
	case KindCodec:
		return ErrCodec
	case KindConfig:
		return ErrConfig
	default:
		return nil
	}
}

// Error is the error type returned by every phase of a job.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrIO) and friends match on kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func IOError(op string, err error) error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

func ProtocolError(op string, format string, args ...interface{}) error {
	return &Error{Kind: KindProtocol, Op: op, Err: fmt.Errorf(format, args...)}
}

func CodecError(op string, err error) error {
	return &Error{Kind: KindCodec, Op: op, Err: err}
}

func ConfigError(op string, format string, args ...interface{}) error {
	return &Error{Kind: KindConfig, Op: op, Err: fmt.Errorf(format, args...)}
}
