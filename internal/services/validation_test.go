package services

import (
	"testing"

	"github.com/hp-funnel/api/internal/bridge"
)

func TestValidateEmptyForm(t *testing.T) {
	v := NewAddressValidator()

	errs := v.Validate("", bridge.Address{})
	for _, field := range []string{"email", "country", "postcode", "city", "address_1", "phone"} {
		if errs[field] == "" {
			t.Fatalf("expected an error for %s, got %v", field, errs)
		}
	}
}

func TestValidateMessages(t *testing.T) {
	v := NewAddressValidator()

	errs := v.Validate("not-an-email", bridge.Address{Country: "XZ"})
	if errs["email"] != "Valid email is required" {
		t.Fatalf("unexpected email message: %q", errs["email"])
	}
	if errs["country"] != "Select a valid country" {
		t.Fatalf("unexpected country message: %q", errs["country"])
	}
}

func TestValidateCompleteAddress(t *testing.T) {
	v := NewAddressValidator()

	errs := v.Validate("fan@example.com", bridge.Address{
		Country:  "IL",
		Postcode: "61000",
		City:     "Tel Aviv",
		Address1: "1 Rothschild Blvd",
		Phone:    "+972 3 555 0100",
	})
	if len(errs) != 0 {
		t.Fatalf("expected a clean validation, got %v", errs)
	}
}
