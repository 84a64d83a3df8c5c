package repository

import (
	"context"
	"database/sql"

	"github.com/accordharmony/foundation-api/internal/model"
)

// ProductRepo reads the (small, mostly static) product catalog.
type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productColumns = "id, name, description, price_cents, currency, product_type, file_key, is_active, total_sales, created_at, updated_at"

func (r *ProductRepo) GetByID(ctx context.Context, id string) (model.Product, error) {
	var p model.Product
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? AND is_active=1 LIMIT 1", id).Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.ProductType,
		&p.FileKey, &p.IsActive, &p.TotalSales, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Product{}, ErrNotFound
	}
	return p, err
}

func (r *ProductRepo) ListActive(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_active=1 ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.ProductType,
			&p.FileKey, &p.IsActive, &p.TotalSales, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IncrementSales bumps the sales counter after a completed purchase.
func (r *ProductRepo) IncrementSales(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE products SET total_sales = total_sales + 1, updated_at=NOW() WHERE id=?", id)
	return err
}
