package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes rendered messages to the log instead of delivering
// them.  It is the development default.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	subject, body, err := Render(msg)
	if err != nil {
		return err
	}
	s.log.Info("email", zap.String("to", msg.To), zap.String("subject", subject), zap.String("body", body))
	return nil
}
