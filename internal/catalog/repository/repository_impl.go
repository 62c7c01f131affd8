package repository

import (
	"context"

	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() catalogdomain.Repository {
	return &repo{}
}

const productColumns = `id, slug, name, description, brand_id, category_id, price,
	 currency, active, metadata, created_at, updated_at`

func (r *repo) InsertProduct(ctx context.Context, db *gorm.DB, product *catalogdomain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (
			id, slug, name, description, brand_id, category_id, price,
			currency, active, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Slug,
		product.Name,
		product.Description,
		product.BrandID,
		product.CategoryID,
		product.Price,
		product.Currency,
		product.Active,
		product.Metadata,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) UpdateProduct(ctx context.Context, db *gorm.DB, product *catalogdomain.Product) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, description = ?, brand_id = ?, category_id = ?, price = ?,
		     currency = ?, active = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Description,
		product.BrandID,
		product.CategoryID,
		product.Price,
		product.Currency,
		product.Active,
		product.Metadata,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*catalogdomain.Product, error) {
	var product catalogdomain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE slug = ?`,
		slug,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) ListProducts(ctx context.Context, db *gorm.DB, filter catalogdomain.ProductFilter) ([]catalogdomain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1 = 1`
	args := []any{}
	if filter.BrandID != nil {
		query += ` AND brand_id = ?`
		args = append(args, *filter.BrandID)
	}
	if filter.CategoryID != nil {
		query += ` AND category_id = ?`
		args = append(args, *filter.CategoryID)
	}
	if filter.ActiveOnly {
		query += ` AND active = ?`
		args = append(args, true)
	}
	if filter.CursorCreatedAt != nil && filter.CursorID != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, *filter.CursorCreatedAt, *filter.CursorCreatedAt, *filter.CursorID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var products []catalogdomain.Product
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) InsertBrand(ctx context.Context, db *gorm.DB, brand *catalogdomain.Brand) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO brands (id, slug, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		brand.ID,
		brand.Slug,
		brand.Name,
		brand.CreatedAt,
		brand.UpdatedAt,
	).Error
}

func (r *repo) FindBrandBySlug(ctx context.Context, db *gorm.DB, slug string) (*catalogdomain.Brand, error) {
	var brand catalogdomain.Brand
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, created_at, updated_at FROM brands WHERE slug = ?`,
		slug,
	).Scan(&brand).Error
	if err != nil {
		return nil, err
	}
	if brand.ID == 0 {
		return nil, nil
	}
	return &brand, nil
}

func (r *repo) ListBrands(ctx context.Context, db *gorm.DB) ([]catalogdomain.Brand, error) {
	var brands []catalogdomain.Brand
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, created_at, updated_at FROM brands ORDER BY name ASC`,
	).Scan(&brands).Error
	if err != nil {
		return nil, err
	}
	return brands, nil
}

func (r *repo) InsertCategory(ctx context.Context, db *gorm.DB, category *catalogdomain.Category) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO categories (id, slug, name, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		category.ID,
		category.Slug,
		category.Name,
		category.ParentID,
		category.CreatedAt,
		category.UpdatedAt,
	).Error
}

func (r *repo) FindCategoryBySlug(ctx context.Context, db *gorm.DB, slug string) (*catalogdomain.Category, error) {
	var category catalogdomain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, parent_id, created_at, updated_at FROM categories WHERE slug = ?`,
		slug,
	).Scan(&category).Error
	if err != nil {
		return nil, err
	}
	if category.ID == 0 {
		return nil, nil
	}
	return &category, nil
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB) ([]catalogdomain.Category, error) {
	var categories []catalogdomain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, name, parent_id, created_at, updated_at FROM categories ORDER BY name ASC`,
	).Scan(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}
