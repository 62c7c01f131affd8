package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ProductFilter narrows ListProducts. Cursor fields page by
// (created_at, id) descending.
type ProductFilter struct {
	BrandID         *snowflake.ID
	CategoryID      *snowflake.ID
	ActiveOnly      bool
	CursorCreatedAt *time.Time
	CursorID        *snowflake.ID
	Limit           int
}

type Repository interface {
	InsertProduct(ctx context.Context, db *gorm.DB, product *Product) error
	UpdateProduct(ctx context.Context, db *gorm.DB, product *Product) error
	FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	ListProducts(ctx context.Context, db *gorm.DB, filter ProductFilter) ([]Product, error)

	InsertBrand(ctx context.Context, db *gorm.DB, brand *Brand) error
	FindBrandBySlug(ctx context.Context, db *gorm.DB, slug string) (*Brand, error)
	ListBrands(ctx context.Context, db *gorm.DB) ([]Brand, error)

	InsertCategory(ctx context.Context, db *gorm.DB, category *Category) error
	FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*Category, error)
	ListCategories(ctx context.Context, db *gorm.DB) ([]Category, error)
}
