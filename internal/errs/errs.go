// Package errs defines the story error taxonomy: validation, upload, persistence
// and network failures. Every failure crossing a layer boundary is an *Error so
// callers can branch on its kind with errors.Is.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindUpload
	KindPersistence
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpload:
		return "upload"
	case KindPersistence:
		return "persistence"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Sentinels usable as errors.Is targets for each kind.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrUpload      = &Error{Kind: KindUpload}
	ErrPersistence = &Error{Kind: KindPersistence}
	ErrNetwork     = &Error{Kind: KindNetwork}
)

// Error is a classified failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrValidation) works
// regardless of Op and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Validation builds a validation failure with a human readable message.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Err: errors.New(msg)}
}

// Upload classifies an object-store failure. Transport failures become KindNetwork.
func Upload(op string, err error) error {
	return classify(KindUpload, op, err)
}

// Persistence classifies a database failure. Transport failures become KindNetwork.
func Persistence(op string, err error) error {
	return classify(KindPersistence, op, err)
}

func classify(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	if IsTransport(err) {
		kind = KindNetwork
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsTransport reports whether err originates in the network transport rather
// than in the remote service itself.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
