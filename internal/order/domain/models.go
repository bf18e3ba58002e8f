// Package domain contains persistence models for customer orders.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Order is owned by one customer. TotalAmount always equals the sum of the
// prices of the products currently linked through order_products.
type Order struct {
	ID          snowflake.ID    `gorm:"primaryKey;autoIncrement:false"`
	CustomerID  snowflake.ID    `gorm:"not null;index"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	OrderDate   time.Time       `gorm:"not null;index"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// OrderProduct links an order to one product. A product appears at most once
// per order.
type OrderProduct struct {
	OrderID   snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	ProductID snowflake.ID `gorm:"primaryKey;autoIncrement:false;index"`
}

func (OrderProduct) TableName() string { return "order_products" }

// LineProduct is a product row read through an order's membership.
type LineProduct struct {
	OrderID snowflake.ID
	ID      snowflake.ID
	Name    string
	Price   decimal.Decimal
}

// Reminder is one order placed inside the reminder window.
type Reminder struct {
	OrderID       snowflake.ID `json:"order_id"`
	CustomerEmail string       `json:"customer_email"`
	OrderDate     time.Time    `json:"order_date"`
}
