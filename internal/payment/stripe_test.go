package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCents(t *testing.T) {
	assert.Equal(t, int64(49700), Cents(decimal.RequireFromString("497")))
	assert.Equal(t, int64(1999), Cents(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1000), Cents(decimal.RequireFromString("9.995")))
}

func TestStripe_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "49700", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "The Sea Explorer Tour", r.PostForm.Get("line_items[0][price_data][product_data][name]"))
		assert.Equal(t, "jonas@example.com", r.PostForm.Get("customer_email"))
		assert.Equal(t, "3", r.PostForm.Get("client_reference_id"))
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "8", r.PostForm.Get("metadata[user_id]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1","object":"checkout.session"}`))
	}))
	defer srv.Close()

	s := NewStripe("sk_test_123", srv.URL+"/")
	sess, err := s.CreateCheckoutSession(context.Background(), CheckoutRequest{
		TourID: 3, UserID: 8, TourName: "The Sea Explorer", Price: decimal.NewFromInt(497),
		CustomerEmail: "jonas@example.com", SuccessURL: "http://localhost:3000/", CancelURL: "http://localhost:3000/tour/the-sea-explorer",
	})
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, sess)
}

func TestStripe_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key provided","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := NewStripe("bad", srv.URL).CreateCheckoutSession(context.Background(), CheckoutRequest{Price: decimal.NewFromInt(1)})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Invalid API Key provided"))
}

func TestLocal(t *testing.T) {
	sess, err := Local{}.CreateCheckoutSession(context.Background(), CheckoutRequest{SuccessURL: "http://localhost:3000/"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.ID, "cs_local_"))
	assert.Equal(t, "http://localhost:3000/", sess.URL)
}
