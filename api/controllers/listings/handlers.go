// Package listings serves the paged dashboard views for merchants and buyers.
package listings

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sourcing-backend/api/middleware"
	"github.com/angelmondragon/sourcing-backend/api/responses"
	"github.com/angelmondragon/sourcing-backend/api/validators"
	"github.com/angelmondragon/sourcing-backend/internal/projections"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
	"github.com/angelmondragon/sourcing-backend/pkg/pagination"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

func OpenRequirements(svc projections.Service, logg *logger.Logger) http.HandlerFunc {
	return page(logg, svc.OpenRequirements)
}

func MerchantQuotes(svc projections.Service, logg *logger.Logger) http.HandlerFunc {
	return page(logg, svc.MyQuotes)
}

func BuyerRequirements(svc projections.Service, logg *logger.Logger) http.HandlerFunc {
	return page(logg, svc.MyRequirements)
}

func BuyerEnquiries(svc projections.Service, logg *logger.Logger) http.HandlerFunc {
	return page(logg, svc.Enquiries)
}

func page[T any](logg *logger.Logger, load func(context.Context, types.Actor, pagination.Params) (*types.ListEnvelope[T], error)) http.HandlerFunc {
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
		list, err := load(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
