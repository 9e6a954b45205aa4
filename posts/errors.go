package posts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorizes a failed Create.
type ErrorKind string

const (
	KindInvalidAuthor      ErrorKind = "INVALID_AUTHOR"
	KindInvalidTopic       ErrorKind = "INVALID_TOPIC"
	KindInvalidReplyTarget ErrorKind = "INVALID_REPLY_TARGET"
	KindBannedContent      ErrorKind = "BANNED_CONTENT"
	KindAllocationFailed   ErrorKind = "ALLOCATION_FAILED"
	KindPersistenceFailed  ErrorKind = "PERSISTENCE_FAILED"
	KindFanOutFailed       ErrorKind = "FAN_OUT_FAILED"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidAuthor      = &Error{Kind: KindInvalidAuthor}
	ErrInvalidTopic       = &Error{Kind: KindInvalidTopic}
	ErrInvalidReplyTarget = &Error{Kind: KindInvalidReplyTarget}
	ErrBannedContent      = &Error{Kind: KindBannedContent}
	ErrAllocationFailed   = &Error{Kind: KindAllocationFailed}
	ErrPersistenceFailed  = &Error{Kind: KindPersistenceFailed}
	ErrFanOutFailed       = &Error{Kind: KindFanOutFailed}
)

// Error is returned by Create. Kind is stable; the other fields carry detail.
type Error struct {
	Kind    ErrorKind
	Message string

	// Terms lists every distinct banned term found (BannedContent).
	Terms []string
	// PID is the id of a post that was persisted before the failure (FanOutFailed).
	PID int64

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Terms) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Terms, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so callers can use the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}
