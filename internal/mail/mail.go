// Package mail dispatches transactional email.
package mail

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNoRecipient is returned when a message has no recipient address.
var ErrNoRecipient = errors.New("mail: recipient address is empty")

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages. Implementations apply their own timeouts.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
