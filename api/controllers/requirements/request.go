package requirements

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sourcing-backend/api/validators"
	internalrequirements "github.com/angelmondragon/sourcing-backend/internal/requirements"
	"github.com/angelmondragon/sourcing-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sourcing-backend/pkg/errors"
)

type createRequest struct {
	Grade            string          `json:"grade" validate:"required,grade"`
	Origin           string          `json:"origin" validate:"required,origin"`
	RequiredQuantity validators.Text `json:"required_quantity" validate:"required"`
	MinimumQuantity  validators.Text `json:"minimum_quantity" validate:"required"`
	ExpectedPrice    decimal.Decimal `json:"expected_price"`
	AllowLowerBid    bool            `json:"allow_lower_bid"`
	DeliveryLocation string          `json:"delivery_location" validate:"max=500"`
	DeliveryCity     string          `json:"delivery_city" validate:"max=120"`
	DeliveryCountry  string          `json:"delivery_country" validate:"max=120"`
	DeliveryDeadline string          `json:"delivery_deadline" validate:"required,datetime=2006-01-02"`
	Specifications   *string         `json:"specifications" validate:"omitempty,max=2000"`
	IsDraft          bool            `json:"is_draft"`
}

func (c createRequest) toInput() (internalrequirements.CreateInput, error) {
	grade, err := enums.ParseGrade(c.Grade)
	if err != nil {
		return internalrequirements.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid grade")
	}
	origin, err := enums.ParseOrigin(c.Origin)
	if err != nil {
		return internalrequirements.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid origin")
	}
	deadline, err := parseDate(c.DeliveryDeadline)
	if err != nil {
		return internalrequirements.CreateInput{}, err
	}
	return internalrequirements.CreateInput{
		Grade:            grade,
		Origin:           origin,
		RequiredQuantity: c.RequiredQuantity.String(),
		MinimumQuantity:  c.MinimumQuantity.String(),
		ExpectedPrice:    c.ExpectedPrice,
		AllowLowerBid:    c.AllowLowerBid,
		DeliveryLocation: c.DeliveryLocation,
		DeliveryCity:     c.DeliveryCity,
		DeliveryCountry:  c.DeliveryCountry,
		DeliveryDeadline: deadline,
		Specifications:   c.Specifications,
		IsDraft:          c.IsDraft,
	}, nil
}

type updateRequest struct {
	Grade            *string          `json:"grade" validate:"omitempty,grade"`
	Origin           *string          `json:"origin" validate:"omitempty,origin"`
	RequiredQuantity *validators.Text `json:"required_quantity"`
	MinimumQuantity  *validators.Text `json:"minimum_quantity"`
	ExpectedPrice    *decimal.Decimal `json:"expected_price"`
	AllowLowerBid    *bool            `json:"allow_lower_bid"`
	DeliveryLocation *string          `json:"delivery_location" validate:"omitempty,max=500"`
	DeliveryCity     *string          `json:"delivery_city" validate:"omitempty,max=120"`
	DeliveryCountry  *string          `json:"delivery_country" validate:"omitempty,max=120"`
	DeliveryDeadline *string          `json:"delivery_deadline" validate:"omitempty,datetime=2006-01-02"`
	Specifications   *string          `json:"specifications" validate:"omitempty,max=2000"`
}

func (u updateRequest) toInput() (internalrequirements.UpdateInput, error) {
	input := internalrequirements.UpdateInput{
		ExpectedPrice:    u.ExpectedPrice,
		AllowLowerBid:    u.AllowLowerBid,
		DeliveryLocation: u.DeliveryLocation,
		DeliveryCity:     u.DeliveryCity,
		DeliveryCountry:  u.DeliveryCountry,
		Specifications:   u.Specifications,
	}
	if u.Grade != nil {
		grade, err := enums.ParseGrade(*u.Grade)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid grade")
		}
		input.Grade = &grade
	}
	if u.Origin != nil {
		origin, err := enums.ParseOrigin(*u.Origin)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid origin")
		}
		input.Origin = &origin
	}
	if u.RequiredQuantity != nil {
		v := u.RequiredQuantity.String()
		input.RequiredQuantity = &v
	}
	if u.MinimumQuantity != nil {
		v := u.MinimumQuantity.String()
		input.MinimumQuantity = &v
	}
	if u.DeliveryDeadline != nil {
		deadline, err := parseDate(*u.DeliveryDeadline)
		if err != nil {
			return input, err
		}
		input.DeliveryDeadline = &deadline
	}
	return input, nil
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(internalrequirements.DateLayout, value)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery_deadline").
			WithDetails(map[string]string{"delivery_deadline": "must be a date formatted as " + internalrequirements.DateLayout})
	}
	return parsed, nil
}
