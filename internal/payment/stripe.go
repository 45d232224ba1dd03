package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/checkout/session"
)

// Stripe creates Checkout Sessions through the Stripe API.  baseURL points
// the client at a different API host, which tests use.
type Stripe struct {
	sessions session.Client
}

func NewStripe(secret, baseURL string) *Stripe {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(strings.TrimRight(baseURL, "/")),
		HTTPClient:        &http.Client{Timeout: 10 * time.Second},
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	})
	return &Stripe{sessions: session.Client{B: backend, Key: secret}}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}
	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(req.TourName + " Tour"),
	}
	if req.Summary != "" {
		product.Description = stripe.String(req.Summary)
	}
	if req.ImageURL != "" {
		product.Images = stripe.StringSlice([]string{req.ImageURL})
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		CustomerEmail:     stripe.String(req.CustomerEmail),
		ClientReferenceID: stripe.String(strconv.FormatUint(req.TourID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(Cents(req.Price)),
				ProductData: product,
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(req.UserID, 10))
	params.SetIdempotencyKey(uuid.NewString())

	cs, err := s.sessions.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return Session{}, fmt.Errorf("stripe checkout: status %d: %s", se.HTTPStatusCode, se.Msg)
		}
		return Session{}, fmt.Errorf("stripe checkout: %w", err)
	}
	return Session{ID: cs.ID, URL: cs.URL}, nil
}

// Local skips the provider and sends the client straight to the success
// page.  It is used when no Stripe key is configured.
type Local struct{}

func (Local) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (Session, error) {
	return Session{ID: "cs_local_" + uuid.NewString(), URL: req.SuccessURL}, nil
}
