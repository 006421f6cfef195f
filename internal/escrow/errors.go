package escrow

import ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"

var (
	// ErrAllocationConflict is returned when create_task targets an occupied slot.
	ErrAllocationConflict = ferrors.AlreadyExistsError("task slot already allocated").Build()

	// ErrInsufficientAuthorization is returned when the depositor's proof is missing or invalid.
	ErrInsufficientAuthorization = ferrors.AuthError("depositor authorization missing or invalid").Build()

	// ErrRecordNotFound is returned when the referenced task does not exist.
	ErrRecordNotFound = ferrors.NotFoundError("task escrow not found").Build()
)
