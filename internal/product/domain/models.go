package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LowStockThreshold is the stock level under which a product counts as low.
const LowStockThreshold = 10

type Product struct {
	ID        snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string          `json:"name" gorm:"type:varchar(100);not null;index"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Stock     int             `json:"stock" gorm:"not null;default:0"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }
