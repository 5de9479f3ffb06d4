package optimize

import (
	"fmt"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
)

// UnattainableError reports targets that cannot hold together, found before
// any edit is made.
type UnattainableError struct {
	Constraint Constraint
	Reason     string
}

func (e *UnattainableError) Error() string {
	return fmt.Sprintf("%s: %s: %s", internalerr.ErrUnattainable, e.Constraint, e.Reason)
}

func (e *UnattainableError) Unwrap() error {
	return internalerr.ErrUnattainable
}

// TimeoutError reports a run that ended without convergence. Report
// measures the best document reached, which is returned alongside.
type TimeoutError struct {
	Iterations int
	Constraint Constraint
	Report     analytics.Report
	// Stalled is set when no edit improved anything before the bound.
	Stalled bool
	// RepairFailures are the particle repairs that gave up during the run.
	RepairFailures []*internalerr.RepairError
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: %s unmet after %d iteration(s)", internalerr.ErrOptimizationTimeout, e.Constraint, e.Iterations)
	if e.Stalled {
		msg = fmt.Sprintf("%s: %s unmet, no improving edit after %d iteration(s)", internalerr.ErrOptimizationTimeout, e.Constraint, e.Iterations)
	}
	if n := len(e.RepairFailures); n > 0 {
		msg += fmt.Sprintf("; %d particle repair(s) failed, first: %v", n, e.RepairFailures[0])
	}
	return msg
}

// Unwrap exposes the timeout sentinel and every repair failure, so both
// errors.Is(err, ErrOptimizationTimeout) and errors.Is(err, ErrRepairFailed)
// hold when repairs gave up.
func (e *TimeoutError) Unwrap() []error {
	errs := []error{internalerr.ErrOptimizationTimeout}
	for _, f := range e.RepairFailures {
		errs = append(errs, f)
	}
	return errs
}
