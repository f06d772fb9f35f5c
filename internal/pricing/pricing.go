// Package pricing turns geometry analysis into a customer price.
package pricing

import (
	"math"
	"strings"
)

// QuoteInput represents the per-order inputs to the pricing calculation.
// Volume, complexity, and print factor come from the geometry analyzer,
// which never fails, so no field here needs defensive defaults beyond
// numeric clamping.
type QuoteInput struct {
	VolumeMM3   float64
	Complexity  float64
	PrintFactor float64
	Material    string
	Quantity    int
}

// Breakdown contains the line items of a quote in US dollars, rounded to
// cents. FinalPrice = BasePrice + ShippingCost, and MaterialCost plus
// PrintingCost always re-add to BasePrice (40/60 split).
type Breakdown struct {
	BasePrice    float64
	MaterialCost float64
	PrintingCost float64
	ShippingCost float64
	FinalPrice   float64

	// Estimated marks prices produced without geometry analysis.
	Estimated bool
}

const (
	premiumMaterialFactor = 1.25

	maxUnitDiscount  = 0.40
	baseUnitDiscount = 0.15
	stepUnitDiscount = 0.025

	shippingFlat    = 5.00
	shippingPerUnit = 0.50
)

// Quote prices an analyzed model. Inputs below their natural minimum are
// clamped rather than rejected.
func Quote(in QuoteInput) Breakdown {
	if in.Quantity < 1 {
		in.Quantity = 1
	}
	volCm3 := in.VolumeMM3 / 1000.0
	if volCm3 < 0 {
		volCm3 = 0
	}

	unit := basePrice(volCm3)
	unit *= math.Max(in.Complexity, 1.0)
	unit *= math.Max(in.PrintFactor, 1.0)
	unit *= materialFactor(in.Material)

	// The discounted total is backed out into an equivalent per-unit
	// multiplier so shipping math shares the same base. Redundant algebra,
	// kept because replacing it shifts rounding.
	base := unit * quantityFactor(in.Quantity) * float64(in.Quantity)

	volumeFactor := clamp(volCm3/200.0, 1.0, 3.0)
	shipping := (shippingFlat + shippingPerUnit*float64(in.Quantity)) * volumeFactor

	return split(base, shipping, false)
}

// Fallback prices an order whose mesh was never parsed, from quantity
// alone. It is monotonically increasing in quantity and never blocks on
// geometry.
func Fallback(quantity int) Breakdown {
	if quantity < 1 {
		quantity = 1
	}

	base := 6.0
	for i := 2; i <= quantity; i++ {
		switch {
		case i <= 5:
			base += 3.60
		case i <= 10:
			base += 3.00
		default:
			base += 2.40
		}
	}

	shipping := 5.0
	if base > 50 {
		shipping = 10.0
	}

	return split(base, shipping, true)
}

// basePrice is a piecewise-linear function of volume in cubic centimeters.
// Deliberately unbounded above: material and machine time genuinely are.
func basePrice(volCm3 float64) float64 {
	switch {
	case volCm3 < 5:
		return 2.0
	case volCm3 < 50:
		return 2.0 + (volCm3-5)/45.0*3.0
	case volCm3 < 200:
		return 5.0 + (volCm3-50)/150.0*5.0
	default:
		return 100.0 + 15.0*math.Max(0, volCm3-5000)/1000.0
	}
}

func materialFactor(material string) float64 {
	for _, marker := range []string{"Premium", "Metallic", "Wood"} {
		if strings.Contains(material, marker) {
			return premiumMaterialFactor
		}
	}
	return 1.0
}

// quantityFactor returns effective-per-unit / full-unit price for q units.
// The first unit pays full price; each additional unit i is discounted by
// min(0.40, 0.15 + 0.025*i).
func quantityFactor(quantity int) float64 {
	if quantity <= 1 {
		return 1.0
	}
	units := 1.0
	for i := 1; i < quantity; i++ {
		discount := math.Min(maxUnitDiscount, baseUnitDiscount+stepUnitDiscount*float64(i))
		units += 1.0 - discount
	}
	return units / float64(quantity)
}

func split(base, shipping float64, estimated bool) Breakdown {
	roundedBase := round2(base)
	material := round2(roundedBase * 0.40)
	roundedShipping := round2(shipping)
	return Breakdown{
		BasePrice:    roundedBase,
		MaterialCost: material,
		PrintingCost: round2(roundedBase - material),
		ShippingCost: roundedShipping,
		FinalPrice:   round2(roundedBase + roundedShipping),
		Estimated:    estimated,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
