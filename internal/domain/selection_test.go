package domain

import "testing"

func TestKitSelectionRoundTrip(t *testing.T) {
	original := KitSelection{Extras: []string{"iodine", "ncd"}, TwoPerson: true}

	decoded := DecodeKitSelection(EncodeKitSelection(original))

	if len(decoded.Extras) != 2 || decoded.Extras[0] != "iodine" || decoded.Extras[1] != "ncd" {
		t.Fatalf("expected extras to survive the round trip, got %v", decoded.Extras)
	}
	if !decoded.TwoPerson {
		t.Fatal("expected twoPerson to survive the round trip")
	}
}

func TestDecodeKitSelectionMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"extras": "oops"}`, `[1,2,3]`} {
		decoded := DecodeKitSelection(raw)
		if decoded.Extras == nil || len(decoded.Extras) != 0 || decoded.TwoPerson {
			t.Fatalf("expected empty selection for %q, got %+v", raw, decoded)
		}
	}
}

func TestDecodeKitSelectionKeepsOnlyStringExtras(t *testing.T) {
	decoded := DecodeKitSelection(`{"extras":["iodine", 42, null, "", "ncd"],"twoPerson":false}`)

	if len(decoded.Extras) != 2 || decoded.Extras[0] != "iodine" || decoded.Extras[1] != "ncd" {
		t.Fatalf("expected only non-empty string extras, got %v", decoded.Extras)
	}
}

func TestEncodeKitSelectionNilExtras(t *testing.T) {
	encoded := EncodeKitSelection(KitSelection{})
	if encoded != `{"extras":[],"twoPerson":false}` {
		t.Fatalf("expected empty-array encoding, got %s", encoded)
	}
}
