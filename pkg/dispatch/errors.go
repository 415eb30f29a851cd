package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoBackends reports that a task has no candidate list configured.
var ErrNoBackends = errors.New("no backends configured")

// AttemptError records one failed backend attempt.
type AttemptError struct {
	Backend string
	Err     error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError reports that every candidate in the ranked order failed.
// Attempts preserves the order in which backends were tried.
type ExhaustedError struct {
	Task     string
	Attempts []AttemptError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, attempt.Error())
	}
	return fmt.Sprintf("all backends failed for task %q: %s", e.Task, strings.Join(parts, " | "))
}
