package retrieval

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized = errors.New("invalid or expired token")
	ErrNotFound     = errors.New("file not found or no longer available")
	ErrForbidden    = errors.New("file storage access denied")
	ErrUnavailable  = errors.New("file storage temporarily unavailable")
	ErrStorage      = errors.New("file storage failure")
)

// ResolveError is returned by Resolve. Kind is one of the sentinels above;
// Outcomes records what each lookup tier saw.
type ResolveError struct {
	Kind     error
	Cause    error
	Outcomes []TierOutcome
}

func (e *ResolveError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *ResolveError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
