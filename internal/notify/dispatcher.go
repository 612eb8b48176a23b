package notify

import (
	"context"
	"log/slog"

	"github.com/seismicguard/seismicguard/internal/observability"
)

// Dispatcher fans payloads out to all configured channels. Fire-and-forget
// from the caller's perspective: Dispatch never returns an error.
type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewDispatcher creates a dispatcher. A dispatcher with no channels is valid
// and drops every payload silently (notifications disabled).
func NewDispatcher(logger *slog.Logger, metrics *observability.Metrics, channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels, logger: logger, metrics: metrics}
}

// Dispatch delivers p on every channel, logging failures to the operator log.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) {
	for _, ch := range d.channels {
		if err := ch.Send(ctx, p); err != nil {
			d.logger.Warn("notification delivery failed",
				"channel", ch.Name(), "kind", p.Kind, "error", err)
			d.metrics.Notifications.WithLabelValues(ch.Name(), "error").Inc()
			continue
		}
		d.metrics.Notifications.WithLabelValues(ch.Name(), "success").Inc()
	}
}
