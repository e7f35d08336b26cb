package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
	"github.com/vibast-solutions/ms-go-inventory/app/repository"
	"github.com/vibast-solutions/ms-go-inventory/app/types"
)

type productRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Product, error)
	List(ctx context.Context, filter repository.ProductFilter) ([]*entity.Product, int64, error)
	Update(ctx context.Context, product *entity.Product) error
	Delete(ctx context.Context, id uint64) (bool, error)
}

type ProductPage struct {
	Items      []*entity.Product `json:"items"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"totalPages"`
}

type ProductService interface {
	Create(ctx context.Context, actor *entity.User, req *types.CreateProductRequest) (*entity.Product, error)
	Get(ctx context.Context, id uint64) (*entity.Product, error)
	List(ctx context.Context, req *types.ListProductsRequest) (*ProductPage, error)
	ListMine(ctx context.Context, actor *entity.User, req *types.ListProductsRequest) (*ProductPage, error)
	Search(ctx context.Context, req *types.ListProductsRequest) (*ProductPage, error)
	Update(ctx context.Context, actor *entity.User, req *types.UpdateProductRequest) (*entity.Product, error)
	Delete(ctx context.Context, actor *entity.User, id uint64) error
}

type productService struct {
	db       *sql.DB
	products productRepository
	media    mediaStore
	opts     options
}

func NewProductService(db *sql.DB, products productRepository, store mediaStore, opts ...Option) ProductService {
	return &productService{
		db:       db,
		products: products,
		media:    store,
		opts:     newOptions(opts),
	}
}

// Create uploads every image first, then writes product and images in one transaction.
// Uploaded images are removed again if anything after the upload fails.
func (s *productService) Create(ctx context.Context, actor *entity.User, req *types.CreateProductRequest) (*entity.Product, error) {
	images := make([]entity.ProductImage, 0, len(req.Images))
	uploaded := make([]string, 0, len(req.Images))
	for _, file := range req.Images {
		asset, err := s.media.Upload(ctx, file)
		if err != nil {
			logrus.WithError(err).WithField("file", file.Name).Warn("Product image upload failed")
			discardAssets(s.media, uploaded...)
			return nil, fmt.Errorf("%w: %w", ErrMediaUpload, err)
		}
		uploaded = append(uploaded, asset.PublicID)
		images = append(images, entity.ProductImage{URL: asset.URL, PublicID: asset.PublicID})
	}

	now := s.opts.now()
	product := &entity.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Discount:    req.Discount,
		Quantity:    req.Quantity,
		Category:    req.Category,
		Brand:       req.Brand,
		Status:      initialStatus(req.Status),
		Images:      images,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	product.Recalculate()

	if err := s.insert(ctx, product); err != nil {
		discardAssets(s.media, uploaded...)
		return nil, err
	}
	return product, nil
}

func (s *productService) insert(ctx context.Context, product *entity.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := repository.NewProductRepository(tx).Create(ctx, product); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *productService) Get(ctx context.Context, id uint64) (*entity.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, req *types.ListProductsRequest) (*ProductPage, error) {
	return s.page(ctx, req, repository.ProductFilter{})
}

func (s *productService) ListMine(ctx context.Context, actor *entity.User, req *types.ListProductsRequest) (*ProductPage, error) {
	return s.page(ctx, req, repository.ProductFilter{CreatedBy: actor.ID})
}

func (s *productService) Search(ctx context.Context, req *types.ListProductsRequest) (*ProductPage, error) {
	return s.page(ctx, req, repository.ProductFilter{
		Query:    req.Query,
		Category: req.Category,
		MinPrice: req.MinPrice,
		MaxPrice: req.MaxPrice,
		InStock:  req.InStock,
	})
}

func (s *productService) page(ctx context.Context, req *types.ListProductsRequest, filter repository.ProductFilter) (*ProductPage, error) {
	filter.SortBy = req.SortBy
	filter.Desc = req.Order == "desc"
	filter.Limit = req.Limit
	filter.Offset = req.Offset()

	items, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &ProductPage{
		Items:      items,
		Page:       req.Page,
		Limit:      req.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *productService) Update(ctx context.Context, actor *entity.User, req *types.UpdateProductRequest) (*entity.Product, error) {
	product, err := s.owned(ctx, actor, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Discount != nil {
		product.Discount = *req.Discount
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
		if product.Brand == "" {
			product.Brand = types.DefaultBrand
		}
	}
	if req.Status != nil {
		product.Status = entity.ProductStatus(*req.Status)
	}
	product.Recalculate()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes the row first; image cleanup on the media host is best effort.
func (s *productService) Delete(ctx context.Context, actor *entity.User, id uint64) error {
	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}

	deleted, err := s.products.Delete(ctx, product.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrProductNotFound
	}

	publicIDs := make([]string, 0, len(product.Images))
	for _, image := range product.Images {
		publicIDs = append(publicIDs, image.PublicID)
	}
	discardAssets(s.media, publicIDs...)
	return nil
}

func (s *productService) owned(ctx context.Context, actor *entity.User, id uint64) (*entity.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.OwnedBy(actor.ID) && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return product, nil
}

// initialStatus keeps an explicit status; otherwise Recalculate derives it from stock.
func initialStatus(status string) entity.ProductStatus {
	if status != "" {
		return entity.ProductStatus(status)
	}
	return entity.ProductAvailable
}
