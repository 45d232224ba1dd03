package model

import "github.com/shopspring/decimal"

// Booking records a purchased place on a tour.  Price is what the user was
// charged, in the tour's currency.
type Booking struct {
	Meta
	Tour  uint64          `json:"tour" validate:"required"`
	User  uint64          `json:"user" validate:"required"`
	Price decimal.Decimal `json:"price"`
	Paid  bool            `json:"paid"`
}
