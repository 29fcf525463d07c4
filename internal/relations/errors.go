package relations

import "errors"

var (
	// ErrTransitionNotAllowed is returned when the actor may not move an item
	// to the requested status, either by workflow or because it is blocked.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")

	// ErrInvalidDates is returned when a due date precedes the start date.
	ErrInvalidDates = errors.New("due date is before start date")

	// ErrSelfRelation is returned when a relation would connect an item to itself.
	ErrSelfRelation = errors.New("item cannot relate to itself")

	// ErrCycle is returned when a precedes or blocks relation would close a loop.
	ErrCycle = errors.New("relation would create a cycle")
)
