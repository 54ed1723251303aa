package dispatcher

import "fmt"

// InputError is a user-correctable request problem. It costs nothing and is
// answered with a usage hint.
type InputError struct {
	Command string
	Reason  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Reason)
}

// InsufficientCreditsError rejects a paid command before any debit.
type InsufficientCreditsError struct {
	Balance  int
	Required int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, required %d", e.Balance, e.Required)
}

// LedgerError reports a ledger call that did not succeed. The ledger client
// fails closed, so there is no underlying error to carry.
type LedgerError struct {
	Op     string
	UserID string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s failed for user %s", e.Op, e.UserID)
}

// PipelineError wraps a failed or timed out analysis. Credits spent on the
// request stay spent.
type PipelineError struct {
	Command string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
