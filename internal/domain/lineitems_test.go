package domain

import "testing"

func TestBuildLineItemsBaseKit(t *testing.T) {
	items := BuildLineItems(KitSelection{})

	if len(items) != 3 {
		t.Fatalf("expected 3 base kit lines, got %d", len(items))
	}
	wantSKUs := []string{"ME-Mgn-8", "USE-264", "ATT-OS-36"}
	for i, item := range items {
		if item.SKU != wantSKUs[i] {
			t.Fatalf("expected SKU %s at position %d, got %s", wantSKUs[i], i, item.SKU)
		}
		if item.Qty != 1 {
			t.Fatalf("expected qty 1, got %d", item.Qty)
		}
	}
}

func TestBuildLineItemsTwoPersonDoublesQty(t *testing.T) {
	items := BuildLineItems(KitSelection{Extras: []string{"iodine"}, TwoPerson: true})

	if len(items) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(items))
	}
	for _, item := range items {
		if item.Qty != 2 {
			t.Fatalf("expected qty 2 on every line, got %d for %s", item.Qty, item.SKU)
		}
	}
}

func TestBuildLineItemsSkipsInvalidExtras(t *testing.T) {
	items := BuildLineItems(KitSelection{Extras: []string{"bogus", "triphala", "ncd"}})

	// Only the base kit plus the one valid enhancement survive.
	if len(items) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(items))
	}
	if items[3].SKU != "WA-6000" {
		t.Fatalf("expected ncd as the only extra, got %s", items[3].SKU)
	}
}

func TestPostPurchaseLineItems(t *testing.T) {
	items, ok := PostPurchaseLineItems()
	if !ok {
		t.Fatal("expected post-purchase products to be orderable by identifier")
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(items))
	}
	if items[0].SKU != "USE-260" || items[1].SKU != "OI-trip90" {
		t.Fatalf("unexpected SKUs: %s %s", items[0].SKU, items[1].SKU)
	}
}
