package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-inventory/app/entity"
)

const productSelectColumns = `id, name, description, price, discount, final_price, quantity, category, brand,
		       in_stock, status, ratings, created_by, created_at, updated_at`

var productSortColumns = map[string]string{
	"createdAt":  "created_at",
	"price":      "price",
	"finalPrice": "final_price",
	"name":       "name",
	"ratings":    "ratings",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ProductFilter narrows List. Zero values mean "no restriction".
type ProductFilter struct {
	CreatedBy uint64
	Query     string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	InStock   *bool
	SortBy    string
	Desc      bool
	Limit     int
	Offset    int
}

func (f ProductFilter) where() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.CreatedBy != 0 {
		clauses = append(clauses, "created_by = ?")
		args = append(args, f.CreatedBy)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + likeEscaper.Replace(q) + "%"
		clauses = append(clauses, "(name LIKE ? OR description LIKE ? OR category LIKE ? OR brand LIKE ?)")
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if f.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		clauses = append(clauses, "final_price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		clauses = append(clauses, "final_price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.InStock != nil {
		clauses = append(clauses, "in_stock = ?")
		args = append(args, *f.InStock)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f ProductFilter) orderBy() string {
	column, ok := productSortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if f.Desc {
		direction = "DESC"
	}
	return " ORDER BY " + column + " " + direction + ", id " + direction
}

type ProductRepository struct {
	db DBTX
}

func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts the product and its images. Run it on a transaction so both land together.
func (r *ProductRepository) Create(ctx context.Context, product *entity.Product) error {
	query := `
		INSERT INTO products (name, description, price, discount, final_price, quantity, category, brand,
		                      in_stock, status, ratings, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		product.Discount,
		product.FinalPrice,
		product.Quantity,
		product.Category,
		product.Brand,
		product.InStock,
		string(product.Status),
		product.Ratings,
		product.CreatedBy,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	product.ID = uint64(id)

	for i := range product.Images {
		image := &product.Images[i]
		image.ProductID = product.ID
		image.Position = i
		if err := r.insertImage(ctx, image); err != nil {
			return err
		}
	}
	return nil
}

func (r *ProductRepository) insertImage(ctx context.Context, image *entity.ProductImage) error {
	query := `INSERT INTO product_images (product_id, url, public_id, position) VALUES (?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, query, image.ProductID, image.URL, image.PublicID, image.Position)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	image.ID = uint64(id)
	return nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id uint64) (*entity.Product, error) {
	query := `SELECT ` + productSelectColumns + `
		FROM products WHERE id = ?`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.attachImages(ctx, []*entity.Product{product}); err != nil {
		return nil, err
	}
	return product, nil
}

// List returns one page of products matching filter together with the total match count.
func (r *ProductRepository) List(ctx context.Context, filter ProductFilter) ([]*entity.Product, int64, error) {
	where, args := filter.where()

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*entity.Product{}, 0, nil
	}

	query := `SELECT ` + productSelectColumns + `
		FROM products` + where + filter.orderBy() + ` LIMIT ? OFFSET ?`
	pageArgs := append(append([]interface{}{}, args...), filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	products := make([]*entity.Product, 0, filter.Limit)
	for rows.Next() {
		product, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.attachImages(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepository) Update(ctx context.Context, product *entity.Product) error {
	query := `
		UPDATE products SET
			name = ?,
			description = ?,
			price = ?,
			discount = ?,
			final_price = ?,
			quantity = ?,
			category = ?,
			brand = ?,
			in_stock = ?,
			status = ?,
			updated_at = ?
		WHERE id = ?
	`
	product.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		product.Discount,
		product.FinalPrice,
		product.Quantity,
		product.Category,
		product.Brand,
		product.InStock,
		string(product.Status),
		product.UpdatedAt,
		product.ID,
	)
	return err
}

// Delete removes the product; its image rows go with it through the foreign key.
func (r *ProductRepository) Delete(ctx context.Context, id uint64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ProductRepository) attachImages(ctx context.Context, products []*entity.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[uint64]*entity.Product, len(products))
	placeholders := make([]string, 0, len(products))
	args := make([]interface{}, 0, len(products))
	for _, p := range products {
		p.Images = []entity.ProductImage{}
		byID[p.ID] = p
		placeholders = append(placeholders, "?")
		args = append(args, p.ID)
	}

	query := `SELECT id, product_id, url, public_id, position FROM product_images
		WHERE product_id IN (` + strings.Join(placeholders, ", ") + `) ORDER BY product_id, position`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var image entity.ProductImage
		if err := rows.Scan(&image.ID, &image.ProductID, &image.URL, &image.PublicID, &image.Position); err != nil {
			return err
		}
		if p, ok := byID[image.ProductID]; ok {
			p.Images = append(p.Images, image)
		}
	}
	return rows.Err()
}

func scanProduct(scan rowScanner) (*entity.Product, error) {
	product := &entity.Product{}
	var status string
	if err := scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Discount,
		&product.FinalPrice,
		&product.Quantity,
		&product.Category,
		&product.Brand,
		&product.InStock,
		&status,
		&product.Ratings,
		&product.CreatedBy,
		&product.CreatedAt,
		&product.UpdatedAt,
	); err != nil {
		return nil, err
	}
	product.Status = entity.ProductStatus(status)
	return product, nil
}
