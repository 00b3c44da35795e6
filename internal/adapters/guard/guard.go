// Package guard decorates collaborator ports with circuit breakers. A
// catalog or fee-calculator outage then fails checkout operations fast with
// a retryable error instead of stacking timed-out calls.
package guard

import (
	"context"

	"github.com/quickbite/orderflow/internal/core/ports"
	"github.com/quickbite/orderflow/internal/pkg/breaker"
)

// Catalog wraps a ports.Catalog with one breaker per call type.
type Catalog struct {
	inner    ports.Catalog
	products *breaker.Breaker[ports.Product]
	options  *breaker.Breaker[optionResult]
	addOns   *breaker.Breaker[ports.AddOn]
}

type optionResult struct {
	modifier float64
	ok       bool
}

func NewCatalog(inner ports.Catalog) *Catalog {
	return &Catalog{
		inner:    inner,
		products: breaker.New[ports.Product]("catalog.product"),
		options:  breaker.New[optionResult]("catalog.option"),
		addOns:   breaker.New[ports.AddOn]("catalog.addon"),
	}
}

func (c *Catalog) Product(ctx context.Context, productID string) (ports.Product, error) {
	return c.products.Do(func() (ports.Product, error) {
		return c.inner.Product(ctx, productID)
	})
}

func (c *Catalog) OptionModifier(ctx context.Context, sel ports.OptionSelection) (float64, bool, error) {
	res, err := c.options.Do(func() (optionResult, error) {
		m, ok, err := c.inner.OptionModifier(ctx, sel)
		return optionResult{modifier: m, ok: ok}, err
	})
	return res.modifier, res.ok, err
}

func (c *Catalog) AddOn(ctx context.Context, addOnID string) (ports.AddOn, error) {
	return c.addOns.Do(func() (ports.AddOn, error) {
		return c.inner.AddOn(ctx, addOnID)
	})
}

// FeeCalculator wraps a ports.FeeCalculator with a breaker.
type FeeCalculator struct {
	inner ports.FeeCalculator
	fees  *breaker.Breaker[float64]
}

func NewFeeCalculator(inner ports.FeeCalculator) *FeeCalculator {
	return &FeeCalculator{
		inner: inner,
		fees:  breaker.New[float64]("delivery.fee"),
	}
}

func (f *FeeCalculator) ComputeFee(ctx context.Context, addressID string) (float64, error) {
	return f.fees.Do(func() (float64, error) {
		return f.inner.ComputeFee(ctx, addressID)
	})
}
