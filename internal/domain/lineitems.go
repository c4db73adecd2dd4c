package domain

import "github.com/hp-funnel/api/internal/bridge"

// BuildLineItems assembles the Bridge order lines for a kit selection: every
// base-kit entry plus each selected enhancement, all at qty 1 or 2 depending
// on the two-person flag. Entries whose catalog data carries neither a
// product id nor a SKU are silently omitted. If nothing at all could be
// built, the legacy single-kit product is used so the order is never empty.
func BuildLineItems(sel KitSelection) []bridge.Item {
	qty := 1
	if sel.TwoPerson {
		qty = 2
	}

	out := make([]bridge.Item, 0, len(baseKitProducts)+len(sel.Extras))
	appendProduct := func(p Product) {
		switch {
		case p.ProductID != 0:
			out = append(out, bridge.Item{ProductID: p.ProductID, Qty: qty})
		case p.SKU != "":
			out = append(out, bridge.Item{SKU: p.SKU, Qty: qty})
		}
	}

	for _, p := range baseKitProducts {
		appendProduct(p)
	}
	for _, key := range sel.Extras {
		p, ok := productsByKey[key]
		if !ok || p.Group != GroupEnhancement {
			continue
		}
		appendProduct(p)
	}

	if len(out) == 0 {
		out = append(out, bridge.Item{ProductID: LegacyKitProductID, Qty: 1})
	}
	return out
}

// PostPurchaseLineItems builds the upsell kit's order lines. The second
// return value reports whether every kit product carries an identifier; when
// it does not, the caller falls back to a single fee on the parent order
// instead of individual line items.
func PostPurchaseLineItems() ([]bridge.Item, bool) {
	out := make([]bridge.Item, 0, len(postPurchaseProducts))
	for _, p := range postPurchaseProducts {
		switch {
		case p.ProductID != 0:
			out = append(out, bridge.Item{ProductID: p.ProductID, Qty: 1})
		case p.SKU != "":
			out = append(out, bridge.Item{SKU: p.SKU, Qty: 1})
		default:
			return nil, false
		}
	}
	return out, true
}
