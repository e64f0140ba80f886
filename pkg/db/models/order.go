package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sourcing-backend/pkg/enums"
)

// Order is the transaction derived from the accepted quote of a requirement.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	RequirementID uuid.UUID         `gorm:"column:requirement_id;type:uuid;not null;uniqueIndex"`
	QuoteID       uuid.UUID         `gorm:"column:quote_id;type:uuid;not null;uniqueIndex"`
	BuyerID       uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	MerchantID    uuid.UUID         `gorm:"column:merchant_id;type:uuid;not null;index"`
	Quantity      decimal.Decimal   `gorm:"column:quantity;type:numeric(18,3);not null"`
	Price         decimal.Decimal   `gorm:"column:price;type:numeric(18,2);not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ConfirmedAt   *time.Time        `gorm:"column:confirmed_at"`
	ConfirmedBy   *uuid.UUID        `gorm:"column:confirmed_by;type:uuid"`
	CancelledAt   *time.Time        `gorm:"column:cancelled_at"`
	CancelledBy   *uuid.UUID        `gorm:"column:cancelled_by;type:uuid"`
	CancelReason  *string           `gorm:"column:cancel_reason;type:text"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
