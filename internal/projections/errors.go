package projections

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

// listError maps a bad cursor to a validation error and a missing row to NOT_FOUND.
func listError(err error, msg string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "requirement not found")
	case strings.Contains(err.Error(), "cursor"):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
	}
}
