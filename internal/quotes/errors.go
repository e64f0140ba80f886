package quotes

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

const (
	ReasonQuoteNotNew         pkgerrors.Reason = "QUOTE_NOT_NEW"
	ReasonDuplicateAcceptance pkgerrors.Reason = "DUPLICATE_ACCEPTANCE"
)

// ErrNotNew reports a decision on a quote that was already decided.
func ErrNotNew(id uuid.UUID, status enums.QuoteStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "quote is already "+string(status)).
		WithReason(ReasonQuoteNotNew).
		WithDetails(map[string]any{"quote_id": id, "status": status})
}

// ErrDuplicateAcceptance reports that a sibling quote already won.
func ErrDuplicateAcceptance(requirementID, acceptedID uuid.UUID) *pkgerrors.Error {
	details := map[string]any{"requirement_id": requirementID}
	if acceptedID != uuid.Nil {
		details["accepted_quote_id"] = acceptedID
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "another quote is already accepted for this requirement").
		WithReason(ReasonDuplicateAcceptance).
		WithDetails(details)
}

// ErrNotFound is returned for unknown quote ids.
func ErrNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
}
