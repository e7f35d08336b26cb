package entity

import (
	"math"
	"time"
)

type ProductStatus string

const (
	ProductAvailable    ProductStatus = "available"
	ProductOutOfStock   ProductStatus = "out-of-stock"
	ProductDiscontinued ProductStatus = "discontinued"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductAvailable, ProductOutOfStock, ProductDiscontinued:
		return true
	}
	return false
}

type ProductImage struct {
	ID        uint64 `json:"-"`
	ProductID uint64 `json:"-"`
	URL       string `json:"url"`
	PublicID  string `json:"publicId"`
	Position  int    `json:"-"`
}

type Product struct {
	ID          uint64         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Discount    float64        `json:"discount"`
	FinalPrice  float64        `json:"finalPrice"`
	Images      []ProductImage `json:"images"`
	Quantity    int64          `json:"quantity"`
	Category    string         `json:"category"`
	Brand       string         `json:"brand"`
	InStock     bool           `json:"inStock"`
	Status      ProductStatus  `json:"status"`
	Ratings     float64        `json:"ratings"`
	CreatedBy   uint64         `json:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// FinalPrice applies a percentage discount and rounds to the nearest whole unit.
func FinalPrice(price, discount float64) float64 {
	return math.Round(price - price*discount/100)
}

// Recalculate derives FinalPrice and InStock from the editable fields.
func (p *Product) Recalculate() {
	p.FinalPrice = FinalPrice(p.Price, p.Discount)
	p.InStock = p.Quantity > 0
	if !p.InStock && p.Status == ProductAvailable {
		p.Status = ProductOutOfStock
	}
	if p.InStock && p.Status == ProductOutOfStock {
		p.Status = ProductAvailable
	}
}

func (p *Product) OwnedBy(userID uint64) bool {
	return p.CreatedBy == userID
}
