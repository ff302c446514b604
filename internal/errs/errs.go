// Package errs defines the error kinds reported while extracting photos
// from scanned sheets.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the scope it affects.
type Kind int

const (
	KindUnknown Kind = iota
	InvalidParameter
	InputIO
	InvalidImageDimensions
	SegmentationDegenerate
	NoBlobsFound
	Rectification
	OutputWrite
)

func (k Kind) String() string {
	switch k {
	case InvalidParameter:
		return "invalid parameter"
	case InputIO:
		return "input io"
	case InvalidImageDimensions:
		return "invalid image dimensions"
	case SegmentationDegenerate:
		return "segmentation degenerate"
	case NoBlobsFound:
		return "no blobs found"
	case Rectification:
		return "rectification"
	case OutputWrite:
		return "output write"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrInvalidParameter       = &Error{Kind: InvalidParameter}
	ErrInputIO                = &Error{Kind: InputIO}
	ErrInvalidImageDimensions = &Error{Kind: InvalidImageDimensions}
	ErrSegmentationDegenerate = &Error{Kind: SegmentationDegenerate}
	ErrNoBlobsFound           = &Error{Kind: NoBlobsFound}
	ErrRectification          = &Error{Kind: Rectification}
	ErrOutputWrite            = &Error{Kind: OutputWrite}
)

// Error carries the kind of a failure and where it happened.
// Blob is zero for file-level errors.
type Error struct {
	Kind Kind
	Path string
	Blob int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Blob > 0 {
		msg += fmt.Sprintf(" blob %d", e.Blob)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels work with
// errors.Is regardless of path or blob.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error with a formatted cause.
func New(kind Kind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and path to err. A nil err stays nil.
func Wrap(kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Path: path, Err: err}
}

// ForBlob scopes err to a blob id. An *Error is copied with the id set;
// anything else, including an *Error wrapped with extra context, is wrapped
// whole so the context survives. Errors without a kind become Rectification.
func ForBlob(err error, id int) error {
	if e, ok := err.(*Error); ok {
		c := *e
		c.Blob = id
		return &c
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = Rectification
	}
	return &Error{Kind: kind, Blob: id, Err: err}
}

// WithPath sets the path on err if it is itself an *Error without one.
// Wrapped errors are returned unchanged.
func WithPath(err error, path string) error {
	if e, ok := err.(*Error); ok && e.Path == "" {
		c := *e
		c.Path = path
		return &c
	}
	return err
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsWarning reports whether err only degrades the result without failing it.
func IsWarning(err error) bool {
	return KindOf(err) == NoBlobsFound
}
