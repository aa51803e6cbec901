// Package pricing computes print job quotes.
package pricing

import "github.com/shopspring/decimal"

// Per-page rates.
var (
	RateBW          = decimal.NewFromInt(1)
	RateColor       = decimal.NewFromInt(2)
	RateMaintenance = decimal.NewFromFloat(0.20)
)

// Options are the print options that affect price.
type Options struct {
	Color  bool
	Copies int
}

// Breakdown is a priced quote.
type Breakdown struct {
	TotalPages     int             `json:"totalPages"`
	ColorPages     int             `json:"colorPages"`
	BWPages        int             `json:"bwPages"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	MaintenanceFee decimal.Decimal `json:"maintenanceFee"`
	Total          decimal.Decimal `json:"total"`
}

// Quote prices the distinct selected pages. Duplicate page ids count once.
func Quote(selectedPageIDs []int, opts Options) Breakdown {
	seen := make(map[int]struct{}, len(selectedPageIDs))
	for _, id := range selectedPageIDs {
		seen[id] = struct{}{}
	}
	return QuoteCount(len(seen), opts)
}

// QuoteCount prices a job by page count alone.
func QuoteCount(pages int, opts Options) Breakdown {
	if pages <= 0 {
		return Breakdown{Subtotal: decimal.Zero, MaintenanceFee: decimal.Zero, Total: decimal.Zero}
	}
	copies := opts.Copies
	if copies < 1 {
		copies = 1
	}
	total := pages * copies

	b := Breakdown{TotalPages: total}
	if opts.Color {
		b.ColorPages = total
	} else {
		b.BWPages = total
	}
	b.Subtotal = RateBW.Mul(decimal.NewFromInt(int64(b.BWPages))).
		Add(RateColor.Mul(decimal.NewFromInt(int64(b.ColorPages))))
	b.MaintenanceFee = RateMaintenance.Mul(decimal.NewFromInt(int64(total)))
	b.Total = b.Subtotal.Add(b.MaintenanceFee)
	return b
}

// Matches reports whether a client-supplied breakdown agrees with this quote.
func (b Breakdown) Matches(totalPages, colorPages, bwPages int, price decimal.Decimal) bool {
	return b.TotalPages == totalPages &&
		b.ColorPages == colorPages &&
		b.BWPages == bwPages &&
		b.Total.Round(2).Equal(price.Round(2))
}
