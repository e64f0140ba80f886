package orders

import (
	"errors"
	"io"
	"net/http"

	"github.com/angelmondragon/sourcing-backend/api/middleware"
	"github.com/angelmondragon/sourcing-backend/api/responses"
	"github.com/angelmondragon/sourcing-backend/api/validators"
	"github.com/angelmondragon/sourcing-backend/internal/negotiation"
	"github.com/angelmondragon/sourcing-backend/internal/projections"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

func Confirm(coordinator negotiation.Service, logg *logger.Logger) http.HandlerFunc {
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
		view, err := coordinator.ConfirmOrder(r.Context(), actor, requirementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// Cancel accepts an optional JSON body carrying the reason.
func Cancel(coordinator negotiation.Service, logg *logger.Logger) http.HandlerFunc {
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
		var body cancelRequest
		if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
			if err := validators.DecodeJSONBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		view, err := coordinator.CancelOrder(r.Context(), actor, requirementID, body.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ListConfirmed returns the caller's confirmed transactions; admins see all.
func ListConfirmed(svc projections.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ConfirmedTransactions(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
