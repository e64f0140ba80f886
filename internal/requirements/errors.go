package requirements

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

const (
	ReasonRequirementNotOpen pkgerrors.Reason = "REQUIREMENT_NOT_OPEN"
	ReasonAlreadyTerminal    pkgerrors.Reason = "ALREADY_TERMINAL"
	ReasonNotEditable        pkgerrors.Reason = "REQUIREMENT_NOT_EDITABLE"
	ReasonInvalidTransition  pkgerrors.Reason = "INVALID_TRANSITION"
)

// ErrNotOpen reports that the requirement no longer accepts quotes.
func ErrNotOpen(id uuid.UUID, status enums.RequirementStatus, expired bool) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "requirement is not open for quotes").
		WithReason(ReasonRequirementNotOpen).
		WithDetails(map[string]any{
			"requirement_id": id,
			"status":         status,
			"expired":        expired,
		})
}

// ErrAlreadyTerminal reports an operation on a closed or confirmed requirement.
func ErrAlreadyTerminal(id uuid.UUID, status enums.RequirementStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "requirement is already "+string(status)).
		WithReason(ReasonAlreadyTerminal).
		WithDetails(map[string]any{"requirement_id": id, "status": status})
}

func errNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "requirement not found")
}
