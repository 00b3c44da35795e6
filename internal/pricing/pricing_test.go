package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quickbite/orderflow/internal/core/ports"
)

func TestUnitPrice_Additivity(t *testing.T) {
	sels := []ports.OptionSelection{
		{CustomizationType: "size", OptionID: "large"},
		{CustomizationType: "milk", OptionID: "oat"},
	}
	mods := map[ports.OptionSelection]float64{
		{CustomizationType: "size", OptionID: "large"}: 0.75,
		{CustomizationType: "milk", OptionID: "oat"}:   0.50,
	}
	addOns := []ports.AddOn{
		{ID: "extra-shot", Price: 1.00, Available: true},
		{ID: "whipped-cream", Price: 0.60, Available: true},
	}

	got := UnitPrice(4.25, sels, mods, addOns)
	assert.InDelta(t, 4.25+0.75+0.50+1.00+0.60, got, 1e-9)
}

func TestUnitPrice_UnknownSelectionContributesZero(t *testing.T) {
	sels := []ports.OptionSelection{
		{CustomizationType: "size", OptionID: "large"},
		{CustomizationType: "temperature", OptionID: "extra-hot"}, // not in catalog
	}
	mods := map[ports.OptionSelection]float64{
		{CustomizationType: "size", OptionID: "large"}: 0.75,
	}

	got := UnitPrice(3.00, sels, mods, nil)
	assert.InDelta(t, 3.75, got, 1e-9)
}

func TestUnitPrice_UnavailableAddOnSkipped(t *testing.T) {
	addOns := []ports.AddOn{
		{ID: "extra-shot", Price: 1.00, Available: true},
		{ID: "caramel", Price: 0.80, Available: false},
	}

	got := UnitPrice(2.50, nil, nil, addOns)
	assert.InDelta(t, 3.50, got, 1e-9)
}

func TestUnitPrice_BarePrice(t *testing.T) {
	assert.InDelta(t, 5.00, UnitPrice(5.00, nil, nil, nil), 1e-9)
}
