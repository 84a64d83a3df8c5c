package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/accordharmony/foundation-api/internal/model"
	"github.com/accordharmony/foundation-api/internal/repository"
)

type fakeProducts struct {
	products map[string]model.Product
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (model.Product, error) {
	p, ok := f.products[id]
	if !ok || !p.IsActive {
		return model.Product{}, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) ListActive(_ context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, p := range f.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func catalogHandler() *ProductHandler {
	return &ProductHandler{Products: &fakeProducts{products: map[string]model.Product{
		"prd_1": {ID: "prd_1", Name: "Book", Description: "Essays", PriceCents: 1999,
			Currency: "eur", ProductType: "digital_book", FileKey: "books/master.pdf", IsActive: true},
		"prd_2": {ID: "prd_2", Name: "Retired", IsActive: false},
	}}}
}

func TestProductListHidesInactiveAndFileKey(t *testing.T) {
	h := catalogHandler()

	rec, env := do(t, h.List, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list, ok := env["data"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)

	item := list[0].(map[string]any)
	require.Equal(t, "prd_1", item["id"])
	require.NotContains(t, item, "file_key")
	require.NotContains(t, rec.Body.String(), "books/master.pdf")
}

func TestProductGet(t *testing.T) {
	h := catalogHandler()

	rec, env := doAs(t, h.Get, nil, http.MethodGet, "/api/products/prd_1", "", "id", "prd_1")
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataOf(t, env)
	require.Equal(t, "Book", data["name"])
	require.Equal(t, float64(1999), data["price_cents"])

	rec, _ = doAs(t, h.Get, nil, http.MethodGet, "/api/products/prd_2", "", "id", "prd_2")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
