package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// Quote is a merchant's response to a single requirement. Quantity and price never change after insert.
type Quote struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	RequirementID uuid.UUID         `gorm:"column:requirement_id;type:uuid;not null;index"`
	MerchantID    uuid.UUID         `gorm:"column:merchant_id;type:uuid;not null;index"`
	Quantity      decimal.Decimal   `gorm:"column:quantity;type:numeric(18,3);not null"`
	Price         decimal.Decimal   `gorm:"column:price;type:numeric(18,2);not null"`
	Remarks       *string           `gorm:"column:remarks;type:text"`
	Status        enums.QuoteStatus `gorm:"column:status;type:text;not null;default:'new'"`
	DecidedAt     *time.Time        `gorm:"column:decided_at"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Quote) TableName() string { return "quotes" }

func (q *Quote) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
