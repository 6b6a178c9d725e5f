package sms

import (
	"context"

	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/phone"
)

// LogSender writes messages to the log instead of delivering them.
// Used in development when no gateway is configured.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if s.Logger == nil {
		return nil
	}
	ctx = s.Logger.WithFields(ctx, map[string]any{
		"receiver": phone.Mask(msg.To),
		"body":     msg.Body,
	})
	s.Logger.Info(ctx, "sms.logged")
	return nil
}
