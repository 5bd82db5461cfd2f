package mail

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

var _ Sender = LogSender{}

// LogSender writes messages to the request logger instead of delivering
// them. It is used when no mail provider is configured.
type LogSender struct{}

// Send logs msg at info level.
func (LogSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	zctx.From(ctx).Info("Mail not delivered: no provider configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("html_bytes", len(msg.HTML)),
	)
	return nil
}
