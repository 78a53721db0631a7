package comic

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorKind int

const (
	// ErrUnsupported means no persistent cache is available; the session
	// continues network-only.
	ErrUnsupported ErrorKind = iota
	// ErrDataUnavailable means the global index could not be obtained.
	ErrDataUnavailable
	// ErrNotFound means the date is not in the global index.
	ErrNotFound
	// ErrYearLoadFailed means one year shard missed the cache and could not
	// be fetched. The year is retried on next access.
	ErrYearLoadFailed
	// ErrCacheWriteFailed is logged by the write-behind queue and never surfaced.
	ErrCacheWriteFailed
	// ErrCorruption flags a date that showed up twice while merging shards.
	ErrCorruption
	ErrInvalidInput
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupported:
		return "Unsupported"
	case ErrDataUnavailable:
		return "DataUnavailable"
	case ErrNotFound:
		return "NotFound"
	case ErrYearLoadFailed:
		return "YearLoadFailed"
	case ErrCacheWriteFailed:
		return "CacheWriteFailed"
	case ErrCorruption:
		return "Corruption"
	case ErrInvalidInput:
		return "InvalidInput"
	default:
		return "Unknown"
	}
}

type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
	Cause   error
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, kind ErrorKind, message string) *Error {
	e := NewError(kind, message)
	e.Cause = err
	return e
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Kind, e.Message)}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, comic.NewError(comic.ErrNotFound, ""))
// works across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
