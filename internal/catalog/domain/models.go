// Package domain contains the storefront catalog models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Product struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	Slug        string            `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	BrandID     *snowflake.ID     `json:"brand_id,omitempty" gorm:"index"`
	CategoryID  *snowflake.ID     `json:"category_id,omitempty" gorm:"index"`
	Price       int64             `json:"price" gorm:"not null"`
	Currency    string            `json:"currency" gorm:"type:text;not null"`
	Active      bool              `json:"active" gorm:"not null;default:true"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type Brand struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Slug      string       `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Brand) TableName() string { return "brands" }

type Category struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	Slug      string        `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Name      string        `json:"name" gorm:"type:text;not null"`
	ParentID  *snowflake.ID `json:"parent_id,omitempty" gorm:"index"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time     `json:"updated_at" gorm:"not null"`
}

func (Category) TableName() string { return "categories" }
