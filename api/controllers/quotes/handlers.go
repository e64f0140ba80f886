package quotes

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/api/middleware"
	"github.com/angelmondragon/sourcing-backend/api/responses"
	"github.com/angelmondragon/sourcing-backend/api/validators"
	"github.com/angelmondragon/sourcing-backend/internal/negotiation"
	"github.com/angelmondragon/sourcing-backend/internal/projections"
	internalquotes "github.com/angelmondragon/sourcing-backend/internal/quotes"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

type submitRequest struct {
	Quantity validators.Text `json:"quantity" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Remarks  *string         `json:"remarks" validate:"omitempty,max=1000"`
}

// Submit records a merchant quote against the requirement in the path.
func Submit(coordinator negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requirementID, err := validators.ParseUUIDParam(r, "requirementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body submitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := coordinator.SubmitQuote(r.Context(), actor, internalquotes.SubmitInput{
			RequirementID: requirementID,
			Quantity:      body.Quantity.String(),
			Price:         body.Price,
			Remarks:       body.Remarks,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// ListForRequirement returns the quotes the caller may see on one requirement.
func ListForRequirement(svc projections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requirementID, err := validators.ParseUUIDParam(r, "requirementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.QuotesForRequirement(r.Context(), actor, requirementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": views})
	}
}

func Accept(coordinator negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quoteID, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := coordinator.AcceptQuote(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Reject(coordinator negotiation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quoteID, err := validators.ParseUUIDParam(r, "quoteId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := coordinator.RejectQuote(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
