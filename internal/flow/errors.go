package flow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCycleDetected is matched by every CycleError
	ErrCycleDetected = errors.New("flow graph contains a cycle")
	// ErrInvalidGraph covers structural problems found while building a graph
	ErrInvalidGraph = errors.New("invalid flow graph")
	// ErrQuestionNotFound is reported when a rule targets a question that does not exist
	ErrQuestionNotFound = errors.New("question not found")
)

// CycleError is returned at build time when skip_to edges (together with ordinal
// advancement) can revisit a question. Path lists the question ids on the cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("flow graph contains a cycle: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// RuleConfigurationError describes a rule that cannot be applied: a dangling
// reference, a malformed operator, or an operand of the wrong type.
type RuleConfigurationError struct {
	SourceQuestionID string
	RuleIndex        int
	Reason           string
	Err              error
}

func (e *RuleConfigurationError) Error() string {
	msg := fmt.Sprintf("rule %d on question %s: %s", e.RuleIndex, e.SourceQuestionID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuleConfigurationError) Unwrap() error {
	return e.Err
}
