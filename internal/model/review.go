package model

// Review is a rating left by a user on a tour.  A user reviews a tour at
// most once.
type Review struct {
	Meta
	Review string `json:"review" validate:"required"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Tour   uint64 `json:"tour" validate:"required"`
	User   uint64 `json:"user" validate:"required"`
}
