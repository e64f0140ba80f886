package negotiation

import (
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/internal/quantity"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

const ReasonQuantityOutOfRange pkgerrors.Reason = "QUANTITY_OUT_OF_RANGE"

// quantityOutOfRange lifts BELOW_MINIMUM and ABOVE_MAXIMUM into the single
// quote-side reason while keeping the policy error as the cause.
func quantityOutOfRange(err error) error {
	if pkgerrors.HasReason(err, quantity.ReasonBelowMinimum) || pkgerrors.HasReason(err, quantity.ReasonAboveMaximum) {
		typed := pkgerrors.As(err)
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "quote quantity is outside the requirement bounds").
			WithReason(ReasonQuantityOutOfRange).
			WithDetails(typed.Details())
	}
	return err
}

func dependency(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func forbidden(msg string) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, msg)
}
