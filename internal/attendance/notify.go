package attendance

import (
	"context"
	"log/slog"

	"github.com/your-org/rollcall/internal/models"
)

// Notifier is the outbound delivery boundary. The rule engine decides
// *that* and *what* to send; delivery by email/SMS is someone else's job.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}

// AlertSink receives triggered alerts for UI-facing actions (toast,
// sound, highlight) — in practice the NATS alerts subject, which the API
// relays to dashboards.
type AlertSink interface {
	PublishAlert(ctx context.Context, alert models.TriggeredAlert) error
}

// Dispatcher executes triggered alerts' declarative actions. It holds no
// decision logic of its own.
type Dispatcher struct {
	notifier  Notifier
	sink      AlertSink
	recipient string // configured alert recipient for email actions
}

func NewDispatcher(notifier Notifier, sink AlertSink, recipient string) *Dispatcher {
	return &Dispatcher{notifier: notifier, sink: sink, recipient: recipient}
}

// Dispatch runs each alert's actions. Alerts arrive pre-sorted by
// priority from Evaluate. Failures are logged, never propagated — alert
// delivery must not fail the attendance write that triggered it.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []models.TriggeredAlert) {
	for _, alert := range alerts {
		for _, action := range alert.Actions {
			switch action {
			case models.ActionLog:
				slog.Info("alert", "rule", alert.RuleName, "priority", alert.Priority, "message", alert.Message)
			case models.ActionEmail:
				if d.notifier == nil {
					continue
				}
				if err := d.notifier.Notify(ctx, d.recipient, alert.RuleName, alert.Message); err != nil {
					slog.Warn("alert email failed", "rule", alert.RuleName, "error", err)
				}
			case models.ActionToast, models.ActionSound, models.ActionHighlight:
				if d.sink == nil {
					continue
				}
				if err := d.sink.PublishAlert(ctx, alert); err != nil {
					slog.Warn("alert publish failed", "rule", alert.RuleName, "error", err)
				}
			}
		}
	}
}
