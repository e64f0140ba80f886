package quotes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sourcing-backend/pkg/db/models"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
	"github.com/angelmondragon/sourcing-backend/pkg/types"
)

func TestCheckDecidable(t *testing.T) {
	require.NoError(t, CheckDecidable(models.Quote{Status: enums.QuoteStatusNew}))
	for _, status := range []enums.QuoteStatus{enums.QuoteStatusAccepted, enums.QuoteStatusRejected} {
		err := CheckDecidable(models.Quote{ID: uuid.New(), Status: status})
		assert.Equal(t, ReasonQuoteNotNew, pkgerrors.ReasonOf(err), "status %s", status)
	}
}

func TestCheckSingleWinner(t *testing.T) {
	reqID := uuid.New()
	candidate := models.Quote{ID: uuid.New(), RequirementID: reqID, Status: enums.QuoteStatusNew}
	winner := models.Quote{ID: uuid.New(), RequirementID: reqID, Status: enums.QuoteStatusAccepted}
	elsewhere := models.Quote{ID: uuid.New(), RequirementID: uuid.New(), Status: enums.QuoteStatusAccepted}

	require.NoError(t, CheckSingleWinner(candidate, []models.Quote{candidate, elsewhere}))

	err := CheckSingleWinner(candidate, []models.Quote{candidate, winner})
	assert.Equal(t, ReasonDuplicateAcceptance, pkgerrors.ReasonOf(err))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestVisible(t *testing.T) {
	buyer := uuid.New()
	merchantA, merchantB := uuid.New(), uuid.New()
	req := models.Requirement{ID: uuid.New(), BuyerID: buyer}
	quotes := []models.Quote{
		{ID: uuid.New(), RequirementID: req.ID, MerchantID: merchantA, Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(10)},
		{ID: uuid.New(), RequirementID: req.ID, MerchantID: merchantB},
		{ID: uuid.New(), RequirementID: uuid.New(), MerchantID: merchantA},
	}

	owner := Visible(types.Actor{UserID: buyer, Role: enums.ActorRoleBuyer}, req, quotes)
	assert.Len(t, owner, 2)

	stranger := Visible(types.Actor{UserID: uuid.New(), Role: enums.ActorRoleBuyer}, req, quotes)
	assert.Empty(t, stranger)

	own := Visible(types.Actor{UserID: merchantA, Role: enums.ActorRoleMerchant}, req, quotes)
	require.Len(t, own, 1)
	assert.Equal(t, merchantA, own[0].MerchantID)
	assert.True(t, own[0].Total.Equal(decimal.NewFromInt(20)))

	admin := Visible(types.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin}, req, quotes)
	assert.Len(t, admin, 2)
}
