package queue

import (
	"context"
	"time"

	"github.com/iliyamo/tour-booking/internal/mail"
)

// Sender implements mail.Sender by handing messages to the email
// consumer.  Send succeeds once the broker accepts the message.
type Sender struct {
	pub Publisher
	now func() time.Time
}

func NewSender(pub Publisher) *Sender {
	return &Sender{pub: pub, now: time.Now}
}

func (s *Sender) Send(ctx context.Context, msg mail.Message) error {
	return s.pub.Publish(ctx, EmailQueue, EmailRequested{Message: msg, RequestedAt: s.now().UTC()})
}
