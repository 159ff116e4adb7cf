// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package allocation

import "errors"

// Error taxonomy shared by both allocators. Handlers map these to HTTP
// statuses; the engine itself never knows about HTTP.
var (
	// ErrInvalidArgument indicates malformed or missing input, including a
	// participant that is not an individually-checkable actor.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRuleRejected indicates the eligibility rules denied the registration.
	ErrRuleRejected = errors.New("registration rejected by eligibility rules")

	// ErrNoSpaceAvailable indicates the course is at capacity.
	ErrNoSpaceAvailable = errors.New("no space available")

	// ErrProcedureNotActive indicates the procedure is outside its allowed
	// time window or in the wrong state for the operation.
	ErrProcedureNotActive = errors.New("procedure is not active")

	// ErrDuplicatePriorityListElement indicates the same course appears more
	// than once across the lists of one submission batch.
	ErrDuplicatePriorityListElement = errors.New("duplicate course across priority lists")

	// ErrAlreadyRegistered indicates a caller resubmitted an already
	// persisted priority list. This is a programming error by the caller.
	ErrAlreadyRegistered = errors.New("priority list is already registered")

	// ErrNotFound indicates a referenced course, procedure, or participant
	// does not exist.
	ErrNotFound = errors.New("not found")
)
