// Package queue carries work off the request path over RabbitMQ: outgoing
// emails and booking notifications.
package queue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/tour-booking/internal/mail"
)

// Queue names.  Both are durable.
const (
	EmailQueue   = "email.send"
	BookingQueue = "booking.created"
)

// EmailRequested asks the email consumer to deliver Message.
type EmailRequested struct {
	Message     mail.Message `json:"message"`
	RequestedAt time.Time    `json:"requested_at"`
}

// BookingCreated is published once a checkout session has been opened for
// a booking.  It carries enough for downstream consumers to log or notify
// without reading the database.
type BookingCreated struct {
	BookingID uint64          `json:"booking_id"`
	TourID    uint64          `json:"tour_id"`
	TourName  string          `json:"tour_name"`
	UserID    uint64          `json:"user_id"`
	UserEmail string          `json:"user_email"`
	Price     decimal.Decimal `json:"price"`
	SessionID string          `json:"session_id"`
	CreatedAt time.Time       `json:"created_at"`
}
