package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/repository"
)

// ProductStore is the catalog surface the public endpoints read.
type ProductStore interface {
	GetByID(ctx context.Context, id string) (model.Product, error)
	ListActive(ctx context.Context) ([]model.Product, error)
}

// ProductHandler serves the public catalog.
type ProductHandler struct {
	Products ProductStore
}

type productPart struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	ProductType string `json:"product_type"`
}

func toProductPart(p model.Product) productPart {
	// FileKey never leaves the backend.
	return productPart{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		ProductType: p.ProductType,
	}
}

// List returns all active products.
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	products, err := h.Products.ListActive(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "Could not load products")
	}
	out := make([]productPart, 0, len(products))
	for _, p := range products {
		out = append(out, toProductPart(p))
	}
	return ok(c, http.StatusOK, "", out)
}

// Get returns one active product by id.
func (h *ProductHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	p, err := h.Products.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "Product not found")
		}
		return fail(c, http.StatusInternalServerError, "Could not load product")
	}
	return ok(c, http.StatusOK, "", toProductPart(p))
}
