package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbaille/diary/internal/domain"
)

// Kind groups classification failures for logging and metrics
type Kind string

const (
	KindTransport Kind = "transport"
	KindTimeout   Kind = "timeout"
	KindCanceled  Kind = "canceled"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
)

// Error is returned for every failed classification call.
// errors.Is(err, domain.ErrClassification) holds for all of them.
type Error struct {
	Op         string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{domain.ErrClassification, e.Err}
}

// Timeout reports whether the call ran past its deadline
func (e *Error) Timeout() bool {
	return e.Kind == KindTimeout
}

// KindOf extracts the failure kind from err, or "" when err is not a classifier error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func transportKind(ctx context.Context, err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		return KindCanceled
	}
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return KindTimeout
	}
	return KindTransport
}
