package service

import "errors"

// Kind classifies a failed recommendation so the HTTP layer can pick a status code.
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindClassification
	KindCatalog
	KindNotFound
	KindDownload
	KindEnvironment
	KindValidation
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindClassification:
		return "classification"
	case KindCatalog:
		return "catalog"
	case KindNotFound:
		return "not_found"
	case KindDownload:
		return "download"
	case KindEnvironment:
		return "environment"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindUnknown
}
