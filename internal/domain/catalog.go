package domain

import "math"

// ProductGroup tags a catalog entry with its merchandising group. Discount
// rates are a property of the group, fixed at catalog level rather than
// server-supplied, so the pricing preview cannot drift per call site.
type ProductGroup string

const (
	// GroupBaseKit items are always included in the kit.
	GroupBaseKit ProductGroup = "base_kit"
	// GroupEnhancement items are user-selectable add-ons.
	GroupEnhancement ProductGroup = "enhancement"
	// GroupPostPurchase items are offered on the post-purchase upsell page.
	GroupPostPurchase ProductGroup = "post_purchase"
)

const (
	// kitDiscountRate applies to base-kit and enhancement items.
	kitDiscountRate = 0.10
	// postPurchaseDiscountRate applies to the off-the-fast upsell kit.
	postPurchaseDiscountRate = 0.15
)

// LegacyKitProductID is the old single-kit store product, kept as a fallback
// when the configured catalog yields no line items at all.
const LegacyKitProductID = 123764

// Product is a static catalog entry. PriceCents is the undiscounted unit
// price in minor units.
type Product struct {
	Key         string
	Name        string
	Description string
	Dosage      string
	PriceCents  int64
	Group       ProductGroup
	// External store identifiers; SKU preferred, ProductID fallback. Both
	// zero means the entry cannot be ordered and is omitted from line items.
	SKU       string
	ProductID int
}

var baseKitProducts = []Product{
	{
		Key:         "magnesium",
		Name:        "Magnesium (Angstrom)",
		Description: "Essential mineral support",
		Dosage:      "1-2 droppers 4 times/day under tongue for 30 seconds",
		PriceCents:  2800,
		Group:       GroupBaseKit,
		SKU:         "ME-Mgn-8",
	},
	{
		Key:         "serraxym",
		Name:        "Serraxym",
		Description: "Proteolytic enzymes",
		Dosage:      "2 capsules 3 times/day mixed in water",
		PriceCents:  6200,
		Group:       GroupBaseKit,
		SKU:         "USE-264",
	},
	{
		Key:         "fasting-elixir",
		Name:        "Tachyon Fasting Elixir",
		Description: "Tachyon energy support",
		Dosage:      "1 dropper 4 times/day mixed in water",
		PriceCents:  3600,
		Group:       GroupBaseKit,
		SKU:         "ATT-OS-36",
	},
}

var enhancementProducts = []Product{
	{
		Key:         "iodine",
		Name:        "Illumodine (Iodine)",
		Description: "Potent lymphatic cleanser",
		Dosage:      "5 drops 3 times/day (start day 5)",
		PriceCents:  2900,
		Group:       GroupEnhancement,
		SKU:         "HG-Illum05",
	},
	{
		Key:         "ncd",
		Name:        "NCD Zeolite",
		Description: "Heavy metal removal",
		Dosage:      "15 drops 4 times/day",
		PriceCents:  4200,
		Group:       GroupEnhancement,
		SKU:         "WA-6000",
	},
	{
		Key:         "radneut",
		Name:        "Rad Neutral",
		Description: "Anti-radiation support",
		Dosage:      "12 drops once daily - hold under tongue for 30 seconds",
		PriceCents:  6200,
		Group:       GroupEnhancement,
		SKU:         "HG-RadNeut1",
	},
}

var postPurchaseProducts = []Product{
	{
		Key:         "digestxym",
		Name:        "Digestxym",
		Description: "Digestive enzyme support",
		Dosage:      "Take with meals to support digestion",
		PriceCents:  6200,
		Group:       GroupPostPurchase,
		SKU:         "USE-260",
	},
	{
		Key:         "triphala",
		Name:        "Organic Triphala",
		Description: "Ayurvedic bowel support",
		Dosage:      "1 teaspoon or 2 caps 3 times/day until first bowel movement",
		PriceCents:  2199,
		Group:       GroupPostPurchase,
		SKU:         "OI-trip90",
	},
}

var productsByKey = func() map[string]Product {
	index := make(map[string]Product)
	for _, group := range [][]Product{baseKitProducts, enhancementProducts, postPurchaseProducts} {
		for _, p := range group {
			index[p.Key] = p
		}
	}
	return index
}()

var productsBySKU = func() map[string]Product {
	index := make(map[string]Product)
	for _, p := range productsByKey {
		if p.SKU != "" {
			index[p.SKU] = p
		}
	}
	return index
}()

// ProductsFor returns the ordered catalog entries for a group.
func ProductsFor(group ProductGroup) []Product {
	var source []Product
	switch group {
	case GroupBaseKit:
		source = baseKitProducts
	case GroupEnhancement:
		source = enhancementProducts
	case GroupPostPurchase:
		source = postPurchaseProducts
	default:
		return nil
	}
	out := make([]Product, len(source))
	copy(out, source)
	return out
}

// ProductByKey looks up a catalog entry by its internal key.
func ProductByKey(key string) (Product, bool) {
	p, ok := productsByKey[key]
	return p, ok
}

// ProductBySKU looks up a catalog entry by its external SKU.
func ProductBySKU(sku string) (Product, bool) {
	p, ok := productsBySKU[sku]
	return p, ok
}

// PriceOf returns the undiscounted unit price for a product key, zero when
// the key is unknown.
func PriceOf(key string) int64 {
	return productsByKey[key].PriceCents
}

// DiscountRateFor returns the fixed discount rate for a group.
func DiscountRateFor(group ProductGroup) float64 {
	if group == GroupPostPurchase {
		return postPurchaseDiscountRate
	}
	return kitDiscountRate
}

// DiscountedPriceCents applies the group's fixed discount to a unit price.
func DiscountedPriceCents(priceCents int64, group ProductGroup) int64 {
	return int64(math.Round(float64(priceCents) * (1 - DiscountRateFor(group))))
}

// KitPricing summarises a kit price calculation.
type KitPricing struct {
	OriginalCents int64
	TotalCents    int64
	SavingsCents  int64
}

// KitPrice computes the discounted price of the base kit plus the selected
// enhancements, doubled for a two-person fast.
func KitPrice(sel KitSelection) KitPricing {
	var original int64
	for _, p := range baseKitProducts {
		original += p.PriceCents
	}
	for _, key := range sel.Extras {
		if p, ok := productsByKey[key]; ok && p.Group == GroupEnhancement {
			original += p.PriceCents
		}
	}
	if sel.TwoPerson {
		original *= 2
	}
	total := DiscountedPriceCents(original, GroupBaseKit)
	return KitPricing{
		OriginalCents: original,
		TotalCents:    total,
		SavingsCents:  original - total,
	}
}

// PostPurchaseKitPrice computes the discounted off-the-fast kit price.
func PostPurchaseKitPrice() KitPricing {
	var original int64
	for _, p := range postPurchaseProducts {
		original += p.PriceCents
	}
	total := DiscountedPriceCents(original, GroupPostPurchase)
	return KitPricing{
		OriginalCents: original,
		TotalCents:    total,
		SavingsCents:  original - total,
	}
}
