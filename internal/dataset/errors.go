package dataset

import "github.com/rotisserie/eris"

// Sentinel errors classifying every failure a mutation can surface. All
// precondition violations abort the whole call before any write; storage
// faults are anything not wrapped by one of these.
var (
	ErrNotFound   = eris.New("not found")
	ErrBadRequest = eris.New("bad request")
)

// NotFoundf builds a Not-Found error with a formatted message.
func NotFoundf(format string, args ...any) error {
	return eris.Wrapf(ErrNotFound, format, args...)
}

// BadRequestf builds a Bad-Request error with a formatted message.
func BadRequestf(format string, args ...any) error {
	return eris.Wrapf(ErrBadRequest, format, args...)
}

// IsNotFound reports whether err is categorized Not-Found.
func IsNotFound(err error) bool { return eris.Is(err, ErrNotFound) }

// IsBadRequest reports whether err is categorized Bad-Request.
func IsBadRequest(err error) bool { return eris.Is(err, ErrBadRequest) }
