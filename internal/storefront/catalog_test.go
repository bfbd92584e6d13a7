package storefront

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatRand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"450", "R450"},
		{"1200", "R1,200"},
		{"1050", "R1,050"},
		{"12500.5", "R12,500.50"},
	}
	for _, tt := range tests {
		if got := FormatRand(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Fatalf("FormatRand(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCatalogDiscounts(t *testing.T) {
	if len(Catalog) != 3 {
		t.Fatalf("groups = %d", len(Catalog))
	}
	for _, g := range Catalog {
		for _, item := range g.Items {
			if d := item.Discount(); d != 30 {
				t.Fatalf("%s discount = %d, want 30", item.Name, d)
			}
		}
	}
	if d := (PriceItem{Regular: decimal.Zero, Special: decimal.Zero}).Discount(); d != 0 {
		t.Fatalf("zero price discount = %d", d)
	}
}
