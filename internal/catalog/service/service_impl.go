package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/pkg/db"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPageSize = 10

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  catalogdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  catalogdomain.Repository
}

func NewService(p ServiceParam) catalogdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("catalog.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateProduct(ctx context.Context, req catalogdomain.CreateProductRequest) (*catalogdomain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	if req.Price <= 0 {
		return nil, catalogdomain.ErrInvalidPrice
	}

	product := &catalogdomain.Product{
		ID:          s.genID.Generate(),
		Slug:        slug.Make(name),
		Name:        name,
		Description: req.Description,
		Price:       req.Price,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Active:      true,
		Metadata:    req.Metadata,
	}
	if product.Currency == "" {
		product.Currency = "KRW"
	}

	if brandSlug := strings.TrimSpace(req.BrandSlug); brandSlug != "" {
		brand, err := s.repo.FindBrandBySlug(ctx, s.db, brandSlug)
		if err != nil {
			return nil, err
		}
		if brand == nil {
			return nil, catalogdomain.ErrBrandNotFound
		}
		product.BrandID = &brand.ID
	}
	if categorySlug := strings.TrimSpace(req.CategorySlug); categorySlug != "" {
		category, err := s.repo.FindCategoryBySlug(ctx, s.db, categorySlug)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, catalogdomain.ErrCategoryNotFound
		}
		product.CategoryID = &category.ID
	}

	now := s.clock.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := s.repo.InsertProduct(ctx, s.db, product); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrSlugTaken
		}
		return nil, err
	}
	return product, nil
}

func (s *Service) GetProductBySlug(ctx context.Context, productSlug string) (*catalogdomain.Product, error) {
	product, err := s.repo.FindProductBySlug(ctx, s.db, strings.TrimSpace(productSlug))
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, catalogdomain.ErrProductNotFound
	}
	return product, nil
}

func (s *Service) ListProducts(ctx context.Context, req catalogdomain.ListProductsRequest) (*catalogdomain.ListProductsResponse, error) {
	filter := catalogdomain.ProductFilter{ActiveOnly: req.ActiveOnly}

	if brandSlug := strings.TrimSpace(req.BrandSlug); brandSlug != "" {
		brand, err := s.repo.FindBrandBySlug(ctx, s.db, brandSlug)
		if err != nil {
			return nil, err
		}
		if brand == nil {
			return nil, catalogdomain.ErrBrandNotFound
		}
		filter.BrandID = &brand.ID
	}
	if categorySlug := strings.TrimSpace(req.CategorySlug); categorySlug != "" {
		category, err := s.repo.FindCategoryBySlug(ctx, s.db, categorySlug)
		if err != nil {
			return nil, err
		}
		if category == nil {
			return nil, catalogdomain.ErrCategoryNotFound
		}
		filter.CategoryID = &category.ID
	}

	size := req.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	// fetch one extra row to learn whether another page exists
	filter.Limit = size + 1

	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, err
		}
		if cursor.ID != "" && cursor.CreatedAt != "" {
			id, err := snowflake.ParseString(cursor.ID)
			if err != nil {
				return nil, err
			}
			createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			if err != nil {
				return nil, err
			}
			filter.CursorID = &id
			filter.CursorCreatedAt = &createdAt
		}
	}

	products, err := s.repo.ListProducts(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := &catalogdomain.ListProductsResponse{Products: products}
	if len(products) > size {
		resp.Products = products[:size]
		last := resp.Products[len(resp.Products)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		resp.PageInfo = pagination.PageInfo{NextPageToken: token, HasMore: true}
	}
	return resp, nil
}

func (s *Service) DeactivateProduct(ctx context.Context, productSlug string) error {
	product, err := s.GetProductBySlug(ctx, productSlug)
	if err != nil {
		return err
	}
	product.Active = false
	product.UpdatedAt = s.clock.Now()
	return s.repo.UpdateProduct(ctx, s.db, product)
}

func (s *Service) CreateBrand(ctx context.Context, req catalogdomain.CreateBrandRequest) (*catalogdomain.Brand, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	now := s.clock.Now()
	brand := &catalogdomain.Brand{
		ID:        s.genID.Generate(),
		Slug:      slug.Make(name),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertBrand(ctx, s.db, brand); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrSlugTaken
		}
		return nil, err
	}
	return brand, nil
}

func (s *Service) ListBrands(ctx context.Context) ([]catalogdomain.Brand, error) {
	return s.repo.ListBrands(ctx, s.db)
}

func (s *Service) CreateCategory(ctx context.Context, req catalogdomain.CreateCategoryRequest) (*catalogdomain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}
	now := s.clock.Now()
	category := &catalogdomain.Category{
		ID:        s.genID.Generate(),
		Slug:      slug.Make(name),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if parentSlug := strings.TrimSpace(req.ParentSlug); parentSlug != "" {
		parent, err := s.repo.FindCategoryBySlug(ctx, s.db, parentSlug)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, catalogdomain.ErrCategoryNotFound
		}
		category.ParentID = &parent.ID
	}
	if err := s.repo.InsertCategory(ctx, s.db, category); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, catalogdomain.ErrSlugTaken
		}
		return nil, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]catalogdomain.Category, error) {
	return s.repo.ListCategories(ctx, s.db)
}
