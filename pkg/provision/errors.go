package provision

import (
	"errors"
	"fmt"
)

// Phase names one step of the provisioning state machine.
type Phase string

const (
	PhaseGenerate Phase = "generate"
	PhaseStage    Phase = "stage"
	PhaseValidate Phase = "validate"
	PhasePlan     Phase = "plan"
	PhaseApply    Phase = "apply"
	PhaseDone     Phase = "done"
)

// ErrUnsupportedAction reports an action the pipeline refuses before
// generating any code.
var ErrUnsupportedAction = errors.New("unsupported provisioning action")

// PhaseError reports a failure in one pipeline phase, carrying the
// captured diagnostic output. Failures in validate or plan mean the staged
// change was rolled back; an apply failure leaves the staged content in
// place.
type PhaseError struct {
	Phase       Phase
	Diagnostics string
	Err         error
}

func (e *PhaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("%s failed", e.Phase)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
