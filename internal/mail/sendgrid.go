package mail

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

var _ Sender = (*SendGridSender)(nil)

// sendClient is the subset of *sendgrid.Client used by SendGridSender.
type sendClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig configures the SendGrid sender.
type SendGridConfig struct {
	APIKey   string
	From     string
	FromName string
}

// SendGridSender delivers messages through the SendGrid v3 API.
type SendGridSender struct {
	client sendClient
	from   *sgmail.Email
}

// NewSendGridSender returns a sender authenticated with cfg.APIKey.
func NewSendGridSender(cfg SendGridConfig) (*SendGridSender, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid api key is empty")
	}
	if cfg.From == "" {
		return nil, errors.New("sender address is empty")
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.From),
	}, nil
}

// Send dispatches msg as an HTML-only email.
func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	m := sgmail.NewV3MailInit(s.from, msg.Subject, sgmail.NewEmail("", msg.To),
		sgmail.NewContent("text/html", msg.HTML),
	)

	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if resp.StatusCode >= 400 {
		return errors.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	zctx.From(ctx).Debug("Mail sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}
