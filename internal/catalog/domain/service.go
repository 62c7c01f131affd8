package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

type CreateProductRequest struct {
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	BrandSlug   string         `json:"brand_slug"`
	CategorySlug string        `json:"category_slug"`
	Price       int64          `json:"price"`
	Currency    string         `json:"currency"`
	Metadata    map[string]any `json:"metadata"`
}

type ListProductsRequest struct {
	pagination.Pagination
	BrandSlug    string `form:"brand"`
	CategorySlug string `form:"category"`
	ActiveOnly   bool   `form:"active_only"`
}

type ListProductsResponse struct {
	Products []Product           `json:"products"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type CreateBrandRequest struct {
	Name string `json:"name"`
}

type CreateCategoryRequest struct {
	Name       string `json:"name"`
	ParentSlug string `json:"parent_slug"`
}

type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	ListProducts(ctx context.Context, req ListProductsRequest) (*ListProductsResponse, error)
	DeactivateProduct(ctx context.Context, slug string) error

	CreateBrand(ctx context.Context, req CreateBrandRequest) (*Brand, error)
	ListBrands(ctx context.Context) ([]Brand, error)

	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrProductNotFound = errors.New("product_not_found")
	ErrBrandNotFound   = errors.New("brand_not_found")
	ErrCategoryNotFound = errors.New("category_not_found")
	ErrSlugTaken       = errors.New("slug_already_exists")
)
