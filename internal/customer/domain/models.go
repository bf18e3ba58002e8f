package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Customer struct {
	ID        snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string       `gorm:"type:varchar(100);not null" json:"name"`
	Email     string       `gorm:"type:varchar(254);not null;uniqueIndex:ux_customers_email" json:"email"`
	Phone     *string      `gorm:"type:varchar(20)" json:"phone,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
