package domain

import (
	"fmt"
	"strings"
)

// ValidationError means the request was rejected before any state was mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError means another invocation holds the domain lock, or a
// uniqueness constraint (domain, port) is already taken.
type ConflictError struct {
	Domain string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Domain, e.Reason)
}

// DeploymentError means a pipeline stage failed. Rollback was attempted and
// succeeded; the host is back to its pre-operation state.
type DeploymentError struct {
	Domain string
	Stage  string
	Err    error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deployment of %s failed at stage %q: %v", e.Domain, e.Stage, e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }

// RollbackError means compensation itself failed after a stage error. The
// record is left in the Failed state with the unremoved resources listed, so
// the operator can re-run delete or clean up by hand. Cause is the original
// stage failure, never swallowed.
type RollbackError struct {
	Domain    string
	Cause     error
	Leftovers []string
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback for %s incomplete (unremoved: %s); original error: %v",
		e.Domain, strings.Join(e.Leftovers, ", "), e.Cause)
}

func (e *RollbackError) Unwrap() error { return e.Cause }

// CorruptStateError means the persisted record and the host disagree: the
// record references resources that are gone, or resources exist with no
// record. Never auto-repaired.
type CorruptStateError struct {
	Domain  string
	Details []string
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("state for %s is corrupt: %s", e.Domain, strings.Join(e.Details, "; "))
}
