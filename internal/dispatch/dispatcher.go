// Package dispatch pushes detection alerts to broadcast channels and decides
// escalation. Sends are fire-and-forget: the detection path enqueues and moves
// on, a single drain goroutine publishes, and publish failures are logged,
// never surfaced and never retried.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/pkg/metrics"
)

// Broadcaster is the group-broadcast transport contract the dispatcher needs.
// The WebSocket hub implements it.
type Broadcaster interface {
	Broadcast(channel string, msg models.AlertMessage) error
}

// Config controls escalation behavior.
type Config struct {
	// ImmediateAlertCritical escalates every critical-severity detection.
	ImmediateAlertCritical bool
	// RecurrenceThreshold escalates once a signature recurs more than this
	// many times.
	RecurrenceThreshold int64
}

// Event is one outbound detection produced by the engine.
type Event struct {
	Alert             models.AlertPayload
	RecurrenceCount   int64
	IsNewSignature    bool
	FrequentThreshold int64 // recurring_anomaly classification bound
}

// Dispatcher drains outbound events and publishes them.
type Dispatcher struct {
	hub    Broadcaster
	cfg    Config
	queue  chan Event
	done   chan struct{}
	logger *slog.Logger
}

// New returns a dispatcher with a bounded outbound queue.
func New(hub Broadcaster, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.RecurrenceThreshold <= 0 {
		cfg.RecurrenceThreshold = 10
	}
	return &Dispatcher{
		hub:    hub,
		cfg:    cfg,
		queue:  make(chan Event, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Enqueue hands an event to the drain goroutine without blocking the
// detection path. A full queue, or a dispatcher that has already stopped,
// drops the event with a counter and a log line.
func (d *Dispatcher) Enqueue(ev Event) {
	select {
	case <-d.done:
		metrics.BroadcastFailuresTotal.WithLabelValues("stopped").Inc()
		d.logger.Warn("dispatcher stopped, dropping alert", "signature_id", ev.Alert.SignatureID)
		return
	default:
	}
	select {
	case d.queue <- ev:
	default:
		metrics.BroadcastFailuresTotal.WithLabelValues("queue_full").Inc()
		d.logger.Warn("dispatch queue full, dropping alert", "signature_id", ev.Alert.SignatureID)
	}
}

// Run drains the queue until ctx is cancelled, then finishes whatever is
// already queued and exits.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue:
			d.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.publish(ev)
				default:
					return
				}
			}
		}
	}
}

// Wait blocks until the drain goroutine has exited or the timeout elapses.
func (d *Dispatcher) Wait(timeout time.Duration) {
	select {
	case <-d.done:
	case <-time.After(timeout):
		d.logger.Warn("dispatcher drain timed out")
	}
}

// Classify picks the broadcast tag for a detection. Escalation is evaluated
// separately.
func (d *Dispatcher) Classify(ev Event) models.AlertType {
	frequent := ev.FrequentThreshold
	if frequent <= 0 {
		frequent = 5
	}
	switch {
	case ev.Alert.Severity == models.SeverityCritical:
		return models.AlertTypeCritical
	case ev.RecurrenceCount > frequent:
		return models.AlertTypeRecurring
	default:
		return models.AlertTypeNew
	}
}

// Escalation returns the escalation reason for a detection, or "" when the
// detection does not escalate.
func (d *Dispatcher) Escalation(ev Event) models.EscalationReason {
	if ev.Alert.Severity == models.SeverityCritical && d.cfg.ImmediateAlertCritical {
		return models.EscalationCriticalSeverity
	}
	if ev.RecurrenceCount > d.cfg.RecurrenceThreshold {
		return models.EscalationHighRecurrence
	}
	return ""
}

func (d *Dispatcher) publish(ev Event) {
	now := time.Now().UTC()
	msg := models.AlertMessage{
		Type:      d.Classify(ev),
		Alert:     ev.Alert,
		Timestamp: now,
	}
	d.send(models.ChannelAnomalyAlerts, msg)
	d.send(models.ChannelStreamMetrics, msg)

	if reason := d.Escalation(ev); reason != "" {
		metrics.EscalationsTotal.WithLabelValues(string(reason)).Inc()
		d.send(models.ChannelEscalations, models.AlertMessage{
			Type:                       models.AlertTypeEscalation,
			Alert:                      ev.Alert,
			EscalationReason:           reason,
			RequiresImmediateAttention: true,
			Timestamp:                  now,
		})
	}
}

func (d *Dispatcher) send(channel string, msg models.AlertMessage) {
	if err := d.hub.Broadcast(channel, msg); err != nil {
		metrics.BroadcastFailuresTotal.WithLabelValues(channel).Inc()
		d.logger.Error("broadcast failed", "channel", channel, "type", string(msg.Type), "error", err)
	}
}
