// Package errs defines the tagged error taxonomy for backup runs.
// Every failure the engine surfaces is an *Error carrying a Kind, a
// structured context (paths, exit codes, captured stderr) and an optional
// operator hint. Cause chains are preserved for diagnostics; cleanup
// failures that follow a primary error are attached as suppressed errors
// and never replace it.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a backup failure.
type Kind string

const (
	KindLockUnavailable         Kind = "lock_unavailable"
	KindMountMissing            Kind = "mount_missing"
	KindSnapshotOperationFailed Kind = "snapshot_operation_failed"
	KindInsufficientSpace       Kind = "insufficient_space"
	KindDependencyMissing       Kind = "dependency_missing"
	KindIdentifierMismatch      Kind = "identifier_mismatch"
	KindCommandFailed           Kind = "command_failed"
	KindInvalidInput            Kind = "invalid_input"
	KindStreamFailed            Kind = "stream_failed"
	KindTimeout                 Kind = "timeout"
	KindCleanupFailed           Kind = "cleanup_failed"
)

func (k Kind) String() string {
	return string(k)
}

// Error is a classified backup failure with structured context.
type Error struct {
	Kind    Kind
	Message string

	// Context holds diagnostic key/value pairs: paths, exit codes,
	// stderr excerpts, observed identifiers. Never secrets.
	Context map[string]string

	// Hint is a suggested operator action, shown alongside the error.
	Hint string

	// Cause is the underlying error, if any.
	Cause error

	// Suppressed holds errors raised while handling this one, typically
	// from the failure-cleanup path. They never replace the primary error.
	Suppressed []error
}

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given kind, message, and cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// With adds a context key/value pair and returns the error for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithHint sets the operator hint and returns the error for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Suppress attaches secondary errors raised while handling this one.
// Nil entries are dropped.
func (e *Error) Suppress(errs ...error) *Error {
	for _, err := range errs {
		if err != nil {
			e.Suppressed = append(e.Suppressed, err)
		}
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Context[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the cause for errors.Is/As traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of err, or "" if err carries no kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HintOf returns the operator hint of err, or "" if none.
func HintOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}
