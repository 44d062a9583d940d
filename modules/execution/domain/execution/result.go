package execution

import (
	"fmt"
	"strings"
)

type Result string

const (
	ResultPending         Result = "PENDING"
	ResultPassed          Result = "PASSED"
	ResultFailed          Result = "FAILED"
	ResultBlocked         Result = "BLOCKED"
	ResultPartiallyPassed Result = "PARTIALLY_PASSED"
)

// TerminalResults are the overall results a user may submit.
var TerminalResults = []Result{ResultPassed, ResultFailed, ResultBlocked, ResultPartiallyPassed}

// StepResults are the values a single step may hold.
var StepResults = []Result{ResultPending, ResultPassed, ResultFailed, ResultBlocked}

func (r Result) IsTerminal() bool {
	switch r {
	case ResultPassed, ResultFailed, ResultBlocked, ResultPartiallyPassed:
		return true
	}
	return false
}

func (r Result) isStep() bool {
	switch r {
	case ResultPending, ResultPassed, ResultFailed, ResultBlocked:
		return true
	}
	return false
}

// normalize tolerates the casing and padding of values written by older releases.
func normalize(v string) Result {
	return Result(strings.ToUpper(strings.TrimSpace(v)))
}

// ParseSubmittedResult accepts only terminal overall results, spelled exactly.
func ParseSubmittedResult(v string) (Result, error) {
	r := Result(v)
	if !r.IsTerminal() {
		return "", fmt.Errorf("%w: %q", ErrInvalidResult, v)
	}
	return r, nil
}

func ParseStepResult(v string) (Result, error) {
	r := Result(v)
	if !r.isStep() {
		return "", fmt.Errorf("%w: %q", ErrInvalidResult, v)
	}
	return r, nil
}

// ParseStoredResult reads an overall result back from storage. Unknown legacy
// tokens read as PENDING.
func ParseStoredResult(v string) Result {
	r := normalize(v)
	if r.IsTerminal() {
		return r
	}
	return ResultPending
}

// ParseStoredStepResult is ParseStoredResult for step results.
func ParseStoredStepResult(v string) Result {
	r := normalize(v)
	if r.isStep() {
		return r
	}
	return ResultPending
}
