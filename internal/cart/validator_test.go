package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/orderflow/internal/adapters/memory"
	"github.com/quickbite/orderflow/internal/core/ports"
)

func seededWorld(t *testing.T) (*memory.CartStore, *memory.Catalog) {
	t.Helper()
	catalog := memory.NewCatalog()
	catalog.PutProduct(ports.Product{ID: "latte", Name: "Latte", BasePrice: 4.50, Available: true})
	catalog.PutProduct(ports.Product{ID: "scone", Name: "Blueberry Scone", BasePrice: 3.00, Available: true})
	return memory.NewCartStore(catalog), catalog
}

func TestValidate_NoActiveCart(t *testing.T) {
	carts, catalog := seededWorld(t)
	v := NewValidator(carts, catalog)

	c, res, err := v.Validate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"no active cart"}, res.Errors)
}

func TestValidate_AggregatesAllErrors(t *testing.T) {
	carts, catalog := seededWorld(t)
	// Empty cart with no address: both problems must be reported at once.
	carts.SetActiveCart(&ports.Cart{ID: "c1", UserID: "u1"})
	v := NewValidator(carts, catalog)

	_, res, err := v.Validate(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "cart is empty")
	assert.Contains(t, res.Errors, "delivery address required")
}

func TestValidate_UnavailableProduct(t *testing.T) {
	carts, catalog := seededWorld(t)
	catalog.PutProduct(ports.Product{ID: "latte", Name: "Latte", BasePrice: 4.50, Available: false})
	carts.SetActiveCart(&ports.Cart{
		ID: "c1", UserID: "u1", AddressID: "a1",
		Items: []ports.CartItem{{ID: "i1", ProductID: "latte", Quantity: 1, UnitPrice: 4.50}},
	})
	v := NewValidator(carts, catalog)

	_, res, err := v.Validate(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Latte no longer available"}, res.Errors)
}

func TestValidate_PriceDriftIsWarningOnly(t *testing.T) {
	carts, catalog := seededWorld(t)
	carts.SetActiveCart(&ports.Cart{
		ID: "c1", UserID: "u1", AddressID: "a1",
		Items: []ports.CartItem{
			// Captured at 4.00, catalog now says 4.50.
			{ID: "i1", ProductID: "latte", Quantity: 1, UnitPrice: 4.00},
			{ID: "i2", ProductID: "scone", Quantity: 2, UnitPrice: 3.00},
		},
	})
	v := NewValidator(carts, catalog)

	c, res, err := v.Validate(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, res.Valid, "warnings never block checkout")
	assert.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "price of Latte changed from 4.00 to 4.50", res.Warnings[0])
}
