package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// Requirement is a buyer's posted sourcing need.
type Requirement struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID          uuid.UUID               `gorm:"column:buyer_id;type:uuid;not null;index"`
	Grade            enums.Grade             `gorm:"column:grade;type:text;not null"`
	Origin           enums.Origin            `gorm:"column:origin;type:text;not null"`
	RequiredQuantity decimal.Decimal         `gorm:"column:required_quantity;type:numeric(18,3);not null"`
	MinimumQuantity  decimal.Decimal         `gorm:"column:minimum_quantity;type:numeric(18,3);not null"`
	ExpectedPrice    decimal.Decimal         `gorm:"column:expected_price;type:numeric(18,2);not null"`
	AllowLowerBid    bool                    `gorm:"column:allow_lower_bid;not null;default:false"`
	DeliveryLocation string                  `gorm:"column:delivery_location;type:text"`
	DeliveryCity     string                  `gorm:"column:delivery_city;type:text"`
	DeliveryCountry  string                  `gorm:"column:delivery_country;type:text"`
	DeliveryDeadline time.Time               `gorm:"column:delivery_deadline;type:date;not null"`
	Specifications   *string                 `gorm:"column:specifications;type:text"`
	IsDraft          bool                    `gorm:"column:is_draft;not null;default:false"`
	Status           enums.RequirementStatus `gorm:"column:status;type:text;not null;index"`
	FirstViewedAt    *time.Time              `gorm:"column:first_viewed_at"`
	FirstViewedBy    *uuid.UUID              `gorm:"column:first_viewed_by;type:uuid"`
	ClosedAt         *time.Time              `gorm:"column:closed_at"`
	ClosedBy         *uuid.UUID              `gorm:"column:closed_by;type:uuid"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Requirement) TableName() string { return "requirements" }

func (r *Requirement) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
