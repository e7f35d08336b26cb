package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-inventory/app/media"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultBrand = "Generic"
)

var productSortFields = []string{"createdAt", "price", "finalPrice", "name", "ratings"}

type CreateProductRequest struct {
	Name        string       `form:"name" validate:"required,max=200"`
	Description string       `form:"description" validate:"required,max=5000"`
	Price       float64      `form:"price" validate:"gte=0"`
	Discount    float64      `form:"discount" validate:"gte=0,lte=100"`
	Quantity    int64        `form:"quantity" validate:"gte=0"`
	Category    string       `form:"category" validate:"required,max=100"`
	Brand       string       `form:"brand" validate:"max=100"`
	Status      string       `form:"status" validate:"omitempty,oneof=available out-of-stock discontinued"`
	Images      []media.File `form:"-" validate:"-"`
}

func NewCreateProductRequestFromContext(ctx echo.Context) (*CreateProductRequest, error) {
	var body CreateProductRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	if form, err := ctx.MultipartForm(); err == nil {
		for _, fh := range form.File["images"] {
			body.Images = append(body.Images, media.FromFileHeader(fh))
		}
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Description = strings.TrimSpace(body.Description)
	body.Category = strings.TrimSpace(body.Category)
	body.Brand = strings.TrimSpace(body.Brand)
	if body.Brand == "" {
		body.Brand = DefaultBrand
	}
	body.Status = strings.TrimSpace(body.Status)

	return &body, nil
}

func (r *CreateProductRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if len(r.Images) == 0 {
		return errors.New("at least one image is required")
	}
	return nil
}

// UpdateProductRequest is partial; nil fields stay unchanged.
type UpdateProductRequest struct {
	ID          uint64   `json:"-"`
	Name        *string  `json:"name" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Discount    *float64 `json:"discount" validate:"omitempty,gte=0,lte=100"`
	Quantity    *int64   `json:"quantity" validate:"omitempty,gte=0"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
	Brand       *string  `json:"brand" validate:"omitempty,max=100"`
	Status      *string  `json:"status" validate:"omitempty,oneof=available out-of-stock discontinued"`
}

func NewUpdateProductRequestFromContext(ctx echo.Context) (*UpdateProductRequest, error) {
	id, err := ProductIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var body UpdateProductRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ID = id

	trim(body.Name, strings.TrimSpace)
	trim(body.Description, strings.TrimSpace)
	trim(body.Category, strings.TrimSpace)
	trim(body.Brand, strings.TrimSpace)
	trim(body.Status, strings.TrimSpace)

	return &body, nil
}

func (r *UpdateProductRequest) Validate() error {
	for name, field := range map[string]*string{"name": r.Name, "description": r.Description, "category": r.Category} {
		if field != nil && *field == "" {
			return fmt.Errorf("%s must not be blank", name)
		}
	}
	return validateStruct(r)
}

func ProductIDFromContext(ctx echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid product id")
	}
	return id, nil
}

// ListProductsRequest covers listing and searching. Search-only fields are empty on plain listings.
type ListProductsRequest struct {
	Page     int
	Limit    int
	SortBy   string
	Order    string
	Query    string
	Category string
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
}

func NewListProductsRequestFromContext(ctx echo.Context) (*ListProductsRequest, error) {
	req := &ListProductsRequest{
		Page:     DefaultPage,
		Limit:    DefaultLimit,
		SortBy:   strings.TrimSpace(ctx.QueryParam("sortBy")),
		Order:    strings.ToLower(strings.TrimSpace(ctx.QueryParam("order"))),
		Query:    strings.TrimSpace(ctx.QueryParam("q")),
		Category: strings.TrimSpace(ctx.QueryParam("category")),
	}
	if req.SortBy == "" {
		req.SortBy = "createdAt"
	}
	if req.Order == "" {
		req.Order = "desc"
	}

	var err error
	if req.Page, err = intQuery(ctx, "page", DefaultPage); err != nil {
		return nil, err
	}
	if req.Limit, err = intQuery(ctx, "limit", DefaultLimit); err != nil {
		return nil, err
	}
	if req.MinPrice, err = floatQuery(ctx, "minPrice"); err != nil {
		return nil, err
	}
	if req.MaxPrice, err = floatQuery(ctx, "maxPrice"); err != nil {
		return nil, err
	}
	if raw := ctx.QueryParam("inStock"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("inStock must be true or false")
		}
		req.InStock = &b
	}

	return req, nil
}

func (r *ListProductsRequest) Validate() error {
	if r.Page < 1 {
		return errors.New("page must be at least 1")
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d", MaxLimit)
	}
	// keeps (page-1)*limit inside MySQL's signed OFFSET range
	if r.Page > math.MaxInt32/r.Limit {
		return errors.New("page is out of range")
	}
	if !contains(productSortFields, r.SortBy) {
		return fmt.Errorf("sortBy must be one of: %s", strings.Join(productSortFields, ", "))
	}
	if r.Order != "asc" && r.Order != "desc" {
		return errors.New("order must be asc or desc")
	}
	if r.MinPrice != nil && *r.MinPrice < 0 {
		return errors.New("minPrice must be greater than or equal to 0")
	}
	if r.MinPrice != nil && r.MaxPrice != nil && *r.MinPrice > *r.MaxPrice {
		return errors.New("minPrice must not exceed maxPrice")
	}
	return nil
}

func (r *ListProductsRequest) Offset() int {
	return (r.Page - 1) * r.Limit
}

func intQuery(ctx echo.Context, name string, def int) (int, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func floatQuery(ctx echo.Context, name string) (*float64, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &f, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
