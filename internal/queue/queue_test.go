package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/tour-booking/internal/mail"
	"github.com/iliyamo/tour-booking/internal/metrics"
)

type published struct {
	queue   string
	payload any
}

type recordingPublisher struct{ got []published }

func (p *recordingPublisher) Publish(_ context.Context, queue string, payload any) error {
	p.got = append(p.got, published{queue, payload})
	return nil
}

type stubSender struct {
	err  error
	sent []mail.Message
}

func (s *stubSender) Send(_ context.Context, msg mail.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func TestSender_PublishesEmailRequest(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewSender(pub)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	msg := mail.Message{Template: mail.Welcome, To: "jonas@example.com", Name: "Jonas Schmedtmann", URL: "http://localhost/me"}
	require.NoError(t, s.Send(context.Background(), msg))

	require.Len(t, pub.got, 1)
	assert.Equal(t, EmailQueue, pub.got[0].queue)
	assert.Equal(t, EmailRequested{Message: msg, RequestedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}, pub.got[0].payload)
}

func TestDeliverEmail(t *testing.T) {
	m := metrics.New()
	body, err := json.Marshal(EmailRequested{Message: mail.Message{Template: mail.PasswordReset, To: "a@b.io"}})
	require.NoError(t, err)

	ok := &stubSender{}
	require.NoError(t, DeliverEmail(ok, m)(context.Background(), body))
	require.Len(t, ok.sent, 1)
	assert.Equal(t, "a@b.io", ok.sent[0].To)

	failing := &stubSender{err: errors.New("smtp down")}
	assert.Error(t, DeliverEmail(failing, m)(context.Background(), body))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emails.WithLabelValues(mail.PasswordReset, "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Emails.WithLabelValues(mail.PasswordReset, "failed")))

	assert.Error(t, DeliverEmail(ok, nil)(context.Background(), []byte("{")))
}

func TestLogBooking(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	body, err := json.Marshal(BookingCreated{BookingID: 9, TourID: 3, TourName: "The Sea Explorer", UserID: 4, Price: decimal.RequireFromString("497")})
	require.NoError(t, err)

	require.NoError(t, LogBooking(zap.New(core))(context.Background(), body))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "booking created", entry.Message)
	assert.Equal(t, "497.00", entry.ContextMap()["price"])
	assert.Equal(t, uint64(9), entry.ContextMap()["booking_id"])
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard{}.Publish(context.Background(), BookingQueue, BookingCreated{}))
}
