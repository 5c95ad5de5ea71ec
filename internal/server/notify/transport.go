// Package notify sends best-effort e-mail notifications. Delivery failures
// are recorded and logged but never returned to the caller.
package notify

import (
	"context"
	"strings"

	"github.com/gin-org/sitebackend/internal/logging"
)

// Message is the logical content of one notification.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Transport delivers messages.
type Transport interface {
	// Probe checks that the transport can currently be reached.
	Probe(ctx context.Context) error
	Send(ctx context.Context, msg Message) error
}

// LogTransport writes messages to the log instead of sending them. Used for
// local development.
type LogTransport struct {
	log logging.Logger
}

func NewLogTransport(log logging.Logger) *LogTransport {
	return &LogTransport{log: log.With("transport", "console")}
}

func (t *LogTransport) Probe(context.Context) error { return nil }

func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.log.Info(ctx, "mail",
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
