// Package errext carries the error-kind taxonomy the core uses to classify
// failures (config_invalid, template_error, protocol_error, timeout,
// check_failed, extraction_failed, hook_error, csv_exhausted,
// worker_unreachable, worker_busy, fatal) and the small set of helpers
// (hints, exit codes) the CLI front-end needs to render a one-line cause
// plus a detailed section.
package errext

import (
	"errors"
	"fmt"

	"github.com/loadvane/corrida/internal/errext/exitcodes"
)

// Kind is one of the taxonomy's error classifications. It is a label, not a
// Go type — callers switch on it rather than on the concrete error type.
type Kind string

const (
	KindConfigInvalid      Kind = "config_invalid"
	KindTemplateError      Kind = "template_error"
	KindProtocolError      Kind = "protocol_error"
	KindTimeout            Kind = "timeout"
	KindCheckFailed        Kind = "check_failed"
	KindExtractionFailed   Kind = "extraction_failed"
	KindHookError          Kind = "hook_error"
	KindCSVExhausted       Kind = "csv_exhausted"
	KindWorkerUnreachable  Kind = "worker_unreachable"
	KindWorkerBusy         Kind = "worker_busy"
	KindFatal              Kind = "fatal"
)

// recoveredLocally is recorded on the result and the scenario continues;
// of the other kinds, csv_exhausted terminates a VU cleanly (under
// stop-vu), hook_error is recorded on a synthetic hook result and stops the
// VU only when the hook is marked fatal, and the rest propagate further
// (fatal to the scheduler, worker_* to the coordinator).
var recoveredLocally = map[Kind]bool{
	KindConfigInvalid:    true,
	KindTemplateError:    true,
	KindProtocolError:    true,
	KindTimeout:          true,
	KindCheckFailed:      true,
	KindExtractionFailed: true,
}

// RecoveredLocally reports whether a failure of this kind is logged,
// recorded on the result, and the scenario simply continues.
func RecoveredLocally(k Kind) bool { return recoveredLocally[k] }

// Exception is the core error value: a Kind, a message, and an optional
// cause. It implements error, Unwrap, HasHint and HasExitCode.
type Exception struct {
	kind  Kind
	msg   string
	cause error
	hint  string
	code  exitcodes.ExitCode
	fatal bool
}

// New builds an Exception of the given kind.
func New(kind Kind, msg string) *Exception {
	return &Exception{kind: kind, msg: msg}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, cause error, msg string) *Exception {
	return &Exception{kind: kind, msg: msg, cause: cause}
}

func (e *Exception) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.cause.Error())
	}
	return e.msg
}

func (e *Exception) Unwrap() error { return e.cause }

// Kind returns the error's taxonomy classification.
func (e *Exception) Kind() Kind { return e.kind }

// Fatal marks this exception as carrying fatal=true for a hook_error: hook
// errors are recorded as a synthetic failed step but do not abort the
// iteration unless the hook sets fatal.
func (e *Exception) Fatal() bool { return e.fatal }

// WithFatal returns a copy of e with Fatal() == true.
func (e *Exception) WithFatal() *Exception {
	cp := *e
	cp.fatal = true
	return &cp
}

// Hint returns the attached hint, if any.
func (e *Exception) Hint() string { return e.hint }

// ExitCode returns the attached exit code, if any (zero value is Success,
// callers should check HasExitCode separately when that distinction matters).
func (e *Exception) ExitCode() exitcodes.ExitCode { return e.code }

// HasHint is implemented by errors that carry a user-facing hint string.
type HasHint interface {
	error
	Hint() string
}

// HasExitCode is implemented by errors that carry a specific process exit
// code.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

type hintedError struct {
	error
	hint string
}

func (e hintedError) Hint() string { return e.hint }
func (e hintedError) Unwrap() error { return e.error }

// WithHint wraps err so that Hint() returns hint, composing with any
// pre-existing hint the way k6's errext.WithHint does: "newHint (oldHint)".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	var existing HasHint
	if errors.As(err, &existing) {
		hint = fmt.Sprintf("%s (%s)", hint, existing.Hint())
	}
	return hintedError{error: err, hint: hint}
}

type exitCodedError struct {
	error
	code exitcodes.ExitCode
}

func (e exitCodedError) ExitCode() exitcodes.ExitCode { return e.code }
func (e exitCodedError) Unwrap() error                { return e.error }

// WithExitCodeIfNone attaches code to err unless err already carries an
// exit code — the first one set wins.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var existing HasExitCode
	if errors.As(err, &existing) {
		return err
	}
	return exitCodedError{error: err, code: code}
}

// hasStackTrace is implemented by errors that want a richer message printed
// instead of Error() (e.g. goja exceptions with a JS stack).
type hasStackTrace interface {
	StackTrace() string
}

// Format extracts the printable error text and any structured fields (e.g.
// hint) from err, matching the shape of k6's errext.Format.
func Format(err error) (string, map[string]interface{}) {
	if err == nil {
		return "", nil
	}
	text := err.Error()
	var st hasStackTrace
	if errors.As(err, &st) {
		text = st.StackTrace()
	}
	fields := map[string]interface{}{}
	var hinted HasHint
	if errors.As(err, &hinted) {
		fields["hint"] = hinted.Hint()
	}
	return text, fields
}
