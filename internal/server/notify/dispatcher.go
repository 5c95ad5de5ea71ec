package notify

import (
	"context"
	"fmt"

	"github.com/gin-org/sitebackend/internal/common"
	"github.com/gin-org/sitebackend/internal/logging"
	"github.com/gin-org/sitebackend/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Status is the outcome of a dispatch.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Result reports what happened to one notification. Cause is set only when
// Status is StatusFailed and always wraps common.ErrNotificationFailed.
type Result struct {
	Status Status
	Cause  error
}

func (r Result) Sent() bool { return r.Status == StatusSent }

// FailureRecorder keeps a dead-letter record of undelivered notifications.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, f *models.NotificationFailure) error
}

// Dispatcher renders templates and makes a single delivery attempt.
type Dispatcher struct {
	transport Transport
	failures  FailureRecorder
	log       logging.Logger
	counter   *prometheus.CounterVec
}

// NewDispatcher builds a dispatcher. failures and counter may be nil.
func NewDispatcher(transport Transport, failures FailureRecorder, log logging.Logger, counter *prometheus.CounterVec) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		failures:  failures,
		log:       log.With("module", "notify"),
		counter:   counter,
	}
}

// Notify renders tmpl with data and sends it to recipient. It probes the
// transport first and gives up without retrying when it is unreachable.
// It never returns an error; the outcome is in the Result.
func (d *Dispatcher) Notify(ctx context.Context, tmpl Template, recipient string, data any) Result {
	subject, body, err := Render(tmpl, data)
	if err != nil {
		return d.fail(ctx, tmpl, recipient, err)
	}

	if err := d.transport.Probe(ctx); err != nil {
		return d.fail(ctx, tmpl, recipient, fmt.Errorf("transport unreachable: %w", err))
	}

	msg := Message{To: []string{recipient}, Subject: subject, Body: body}
	if err := d.transport.Send(ctx, msg); err != nil {
		return d.fail(ctx, tmpl, recipient, fmt.Errorf("send: %w", err))
	}

	d.count(tmpl, StatusSent)
	d.log.Info(ctx, "notification sent", "template", string(tmpl), "recipient", recipient)
	return Result{Status: StatusSent}
}

func (d *Dispatcher) fail(ctx context.Context, tmpl Template, recipient string, cause error) Result {
	cause = fmt.Errorf("%w: %w", common.ErrNotificationFailed, cause)

	d.count(tmpl, StatusFailed)
	d.log.Error(ctx, "notification failed", "template", string(tmpl), "recipient", recipient, "error", cause)

	if d.failures != nil {
		rec := &models.NotificationFailure{Template: string(tmpl), Recipient: recipient, Cause: cause.Error()}
		// Record even when the request context is already cancelled.
		if err := d.failures.RecordFailure(context.WithoutCancel(ctx), rec); err != nil {
			d.log.Error(ctx, "recording notification failure", "template", string(tmpl), "error", err)
		}
	}

	return Result{Status: StatusFailed, Cause: cause}
}

func (d *Dispatcher) count(tmpl Template, s Status) {
	if d.counter != nil {
		d.counter.WithLabelValues(string(tmpl), string(s)).Inc()
	}
}
