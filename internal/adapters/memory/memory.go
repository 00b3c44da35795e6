// Package memory provides in-memory implementations of the collaborator
// ports. They back the service in single-process deployments and in tests;
// a production deployment swaps them for clients of the real catalog, address
// and cart services.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/orderflow/internal/core/ports"
	"github.com/quickbite/orderflow/internal/pricing"
)

// Catalog is a mutex-guarded product/option/add-on catalog.
type Catalog struct {
	mu        sync.RWMutex
	products  map[string]ports.Product
	modifiers map[ports.OptionSelection]float64
	addOns    map[string]ports.AddOn
}

func NewCatalog() *Catalog {
	return &Catalog{
		products:  make(map[string]ports.Product),
		modifiers: make(map[ports.OptionSelection]float64),
		addOns:    make(map[string]ports.AddOn),
	}
}

func (c *Catalog) PutProduct(p ports.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *Catalog) PutModifier(sel ports.OptionSelection, modifier float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modifiers[sel] = modifier
}

func (c *Catalog) PutAddOn(a ports.AddOn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addOns[a.ID] = a
}

func (c *Catalog) Product(_ context.Context, productID string) (ports.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return ports.Product{}, fmt.Errorf("product %s: %w", productID, ErrNotSeeded)
	}
	return p, nil
}

func (c *Catalog) OptionModifier(_ context.Context, sel ports.OptionSelection) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modifiers[sel]
	return m, ok, nil
}

func (c *Catalog) AddOn(_ context.Context, addOnID string) (ports.AddOn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.addOns[addOnID]
	if !ok {
		return ports.AddOn{}, fmt.Errorf("add-on %s: %w", addOnID, ErrNotSeeded)
	}
	return a, nil
}

// ErrNotSeeded is returned for lookups of entities the adapter never saw.
var ErrNotSeeded = fmt.Errorf("not found in memory adapter")

// AddressBook stores addresses by id.
type AddressBook struct {
	mu        sync.RWMutex
	addresses map[string]ports.Address
}

func NewAddressBook() *AddressBook {
	return &AddressBook{addresses: make(map[string]ports.Address)}
}

func (b *AddressBook) Put(a ports.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addresses[a.ID] = a
}

func (b *AddressBook) Address(_ context.Context, addressID string) (ports.Address, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.addresses[addressID]
	if !ok {
		return ports.Address{}, fmt.Errorf("address %s: %w", addressID, ErrNotSeeded)
	}
	return a, nil
}

// FeeCalculator returns a flat fee per address, with an overridable default.
type FeeCalculator struct {
	mu         sync.RWMutex
	defaultFee float64
	perAddress map[string]float64
}

func NewFeeCalculator(defaultFee float64) *FeeCalculator {
	return &FeeCalculator{
		defaultFee: defaultFee,
		perAddress: make(map[string]float64),
	}
}

func (f *FeeCalculator) SetFee(addressID string, fee float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perAddress[addressID] = fee
}

func (f *FeeCalculator) ComputeFee(_ context.Context, addressID string) (float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if fee, ok := f.perAddress[addressID]; ok {
		return fee, nil
	}
	return f.defaultFee, nil
}

// CartStore keeps one active cart per user.
type CartStore struct {
	mu      sync.Mutex
	active  map[string]*ports.Cart // keyed by user id
	catalog *Catalog
}

// NewCartStore builds a cart store. The catalog is used by AddItems to price
// items at current catalog prices (the reorder flow re-prices, it does not
// resurrect the old order's prices).
func NewCartStore(catalog *Catalog) *CartStore {
	return &CartStore{
		active:  make(map[string]*ports.Cart),
		catalog: catalog,
	}
}

// SetActiveCart installs a cart as the user's active cart, replacing any
// previous one.
func (s *CartStore) SetActiveCart(c *ports.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[c.UserID] = c
}

func (s *CartStore) ActiveCart(_ context.Context, userID string) (*ports.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.active[userID]
	if !ok {
		return nil, nil
	}
	cp := *c
	cp.Items = append([]ports.CartItem(nil), c.Items...)
	return &cp, nil
}

func (s *CartStore) Deactivate(_ context.Context, cartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, c := range s.active {
		if c.ID == cartID {
			delete(s.active, userID)
			return nil
		}
	}
	// Already gone; deactivation is idempotent.
	return nil
}

// AddItems appends items to the user's active cart, creating one if needed.
// Each item's unit price is recomputed from current catalog data.
func (s *CartStore) AddItems(ctx context.Context, userID string, items []ports.CartItem) error {
	priced := make([]ports.CartItem, 0, len(items))
	for _, item := range items {
		p, err := s.catalog.Product(ctx, item.ProductID)
		if err != nil {
			return err
		}
		mods := make(map[ports.OptionSelection]float64, len(item.Selections))
		for _, sel := range item.Selections {
			if m, ok, _ := s.catalog.OptionModifier(ctx, sel); ok {
				mods[sel] = m
			}
		}
		addOns := make([]ports.AddOn, 0, len(item.AddOnIDs))
		for _, id := range item.AddOnIDs {
			if a, err := s.catalog.AddOn(ctx, id); err == nil {
				addOns = append(addOns, a)
			}
		}
		item.ID = uuid.NewString()
		item.UnitPrice = pricing.UnitPrice(p.BasePrice, item.Selections, mods, addOns)
		priced = append(priced, item)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.active[userID]
	if !ok {
		c = &ports.Cart{
			ID:        uuid.NewString(),
			UserID:    userID,
			CreatedAt: time.Now().UTC(),
		}
		s.active[userID] = c
	}
	c.Items = append(c.Items, priced...)
	return nil
}
