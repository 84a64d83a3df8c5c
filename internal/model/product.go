package model

import "time"

// Product is a catalog entry in the `products` table. The catalog is
// seeded reference data (currently a single digital book); user
// traffic only reads it and bumps the sales counter on fulfillment.
type Product struct {
	ID          string    // products.id
	Name        string    // products.name
	Description string    // products.description
	PriceCents  int64     // products.price_cents (minor currency units)
	Currency    string    // products.currency (ISO 4217)
	ProductType string    // products.product_type (e.g. "digital_book")
	FileKey     string    // products.file_key (source artifact in object storage)
	IsActive    bool      // products.is_active
	TotalSales  int64     // products.total_sales
	CreatedAt   time.Time // products.created_at
	UpdatedAt   time.Time // products.updated_at
}
