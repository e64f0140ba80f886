package controllers

import (
	"net/http"

	"github.com/angelmondragon/sourcing-backend/api/responses"
	"github.com/angelmondragon/sourcing-backend/internal/pricing"
)

// PricingCeilings publishes the grade and origin ceiling table.
func PricingCeilings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"items": pricing.Table()})
	}
}
