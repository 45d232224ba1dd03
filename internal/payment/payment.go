// Package payment opens hosted checkout sessions for tour bookings.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// CheckoutRequest describes a single tour purchase.
type CheckoutRequest struct {
	TourID        uint64
	TourName      string
	Summary       string
	ImageURL      string
	Price         decimal.Decimal
	Currency      string
	CustomerEmail string
	UserID        uint64
	SuccessURL    string
	CancelURL     string
}

// Session is the hosted payment page the client is redirected to.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Gateway is the single call made to the payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
}

// Cents converts a price to the smallest currency unit, rounding half away
// from zero.
func Cents(price decimal.Decimal) int64 {
	return price.Shift(2).Round(0).IntPart()
}
