package workflow

import (
	"errors"
	"fmt"
)

// ErrValidation is the base of every rule violation reported by the state
// machine. Callers surface these directly and never retry them.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidStatus            = fmt.Errorf("%w: invalid task status", ErrValidation)
	ErrInvalidReviewerStatus    = fmt.Errorf("%w: invalid reviewer status", ErrValidation)
	ErrRemarksRequired          = fmt.Errorf("%w: remarks are required when moving a task to Pending", ErrValidation)
	ErrRejectionRemarksRequired = fmt.Errorf("%w: remarks are required to reject a task", ErrValidation)
	ErrReservedRemarksPrefix    = fmt.Errorf("%w: remarks may not start with the rejection marker", ErrValidation)
	ErrNotCompleted             = fmt.Errorf("%w: task must be Completed to be reviewed", ErrValidation)
	ErrAssigneeRequired         = fmt.Errorf("%w: assignee is required", ErrValidation)
	ErrCascadeReasonRequired    = fmt.Errorf("%w: cascade reason is required", ErrValidation)
	ErrCascadeCompleted         = fmt.Errorf("%w: completed tasks are not moved by a deactivation", ErrValidation)
	ErrUnknownCommand           = fmt.Errorf("%w: unknown command", ErrValidation)
)

// ErrInvariant is returned by CheckInvariants.
var ErrInvariant = errors.New("task invariant violated")
