package storefront

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PriceItem is one line of the price list.
type PriceItem struct {
	Name    string
	Note    string
	Regular decimal.Decimal
	Special decimal.Decimal
}

// Discount is the special-price saving as a whole percentage.
func (p PriceItem) Discount() int64 {
	if !p.Regular.IsPositive() || p.Special.GreaterThanOrEqual(p.Regular) {
		return 0
	}
	return decimal.NewFromInt(1).Sub(p.Special.Div(p.Regular)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// PriceGroup is a titled block of the price list.
type PriceGroup struct {
	ID    string
	Title string
	Items []PriceItem
}

func zar(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// Catalog is the published price list.
var Catalog = []PriceGroup{
	{
		ID:    "documentation",
		Title: "Business Documentation",
		Items: []PriceItem{
			{Name: "Business Profile (Company Overview)", Regular: zar(450), Special: zar(315)},
			{Name: "Business Proposal (For Clients/Investors)", Regular: zar(650), Special: zar(455)},
			{Name: "Business Plan (Detailed, with Financials)", Regular: zar(1200), Special: zar(840)},
			{Name: "Business Pitch Deck (PowerPoint/Slides)", Regular: zar(850), Special: zar(595)},
		},
	},
	{
		ID:    "branding",
		Title: "Branding & Design",
		Items: []PriceItem{
			{Name: "Flyer / Poster Design", Regular: zar(200), Special: zar(140)},
			{Name: "Business Cards Design", Note: "Includes print-ready file", Regular: zar(300), Special: zar(210)},
			{Name: "Letterhead / Company Documents Design", Regular: zar(250), Special: zar(175)},
			{Name: "Logo Design", Regular: zar(600), Special: zar(420)},
		},
	},
	{
		ID:    "advanced",
		Title: "Advanced Business & Digital",
		Items: []PriceItem{
			{Name: "Company Registration Assistance", Regular: zar(950), Special: zar(665)},
			{Name: "Website Starter Package (1-3 Pages)", Regular: zar(1500), Special: zar(1050)},
			{Name: "E-Commerce / Booking Website", Regular: zar(3500), Special: zar(2450)},
			{Name: "Social Media Setup & Branding", Note: "Per platform", Regular: zar(500), Special: zar(350)},
		},
	},
}

var pricePrinter = message.NewPrinter(language.English)

// FormatRand renders an amount in rand with thousands separators, e.g. R1,200.
// Cents are shown only when present.
func FormatRand(d decimal.Decimal) string {
	if d.IsInteger() {
		return pricePrinter.Sprintf("R%d", d.IntPart())
	}
	f, _ := d.Round(2).Float64()
	return pricePrinter.Sprintf("R%.2f", f)
}
