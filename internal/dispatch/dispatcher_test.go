package dispatch

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/pkg/metrics"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type captureBroadcaster struct {
	mu       sync.Mutex
	messages map[string][]models.AlertMessage
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{messages: make(map[string][]models.AlertMessage)}
}

func (c *captureBroadcaster) Broadcast(channel string, msg models.AlertMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[channel] = append(c.messages[channel], msg)
	return nil
}

func (c *captureBroadcaster) get(channel string) []models.AlertMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.AlertMessage(nil), c.messages[channel]...)
}

func TestClassify(t *testing.T) {
	d := New(newCaptureBroadcaster(), Config{}, testLogger())

	tests := []struct {
		name  string
		event Event
		want  models.AlertType
	}{
		{
			"critical wins over recurrence",
			Event{Alert: models.AlertPayload{Severity: models.SeverityCritical}, RecurrenceCount: 100, FrequentThreshold: 5},
			models.AlertTypeCritical,
		},
		{
			"recurring above frequent threshold",
			Event{Alert: models.AlertPayload{Severity: models.SeverityWarning}, RecurrenceCount: 6, FrequentThreshold: 5},
			models.AlertTypeRecurring,
		},
		{
			"at threshold is still new",
			Event{Alert: models.AlertPayload{Severity: models.SeverityWarning}, RecurrenceCount: 5, FrequentThreshold: 5},
			models.AlertTypeNew,
		},
		{
			"zero threshold uses default of five",
			Event{Alert: models.AlertPayload{Severity: models.SeverityWarning}, RecurrenceCount: 6},
			models.AlertTypeRecurring,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Classify(tt.event))
		})
	}
}

func TestEscalation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ev   Event
		want models.EscalationReason
	}{
		{
			"critical with immediate alerts",
			Config{ImmediateAlertCritical: true, RecurrenceThreshold: 10},
			Event{Alert: models.AlertPayload{Severity: models.SeverityCritical}, RecurrenceCount: 1},
			models.EscalationCriticalSeverity,
		},
		{
			"critical without immediate alerts",
			Config{ImmediateAlertCritical: false, RecurrenceThreshold: 10},
			Event{Alert: models.AlertPayload{Severity: models.SeverityCritical}, RecurrenceCount: 1},
			"",
		},
		{
			"high recurrence",
			Config{RecurrenceThreshold: 10},
			Event{Alert: models.AlertPayload{Severity: models.SeverityWarning}, RecurrenceCount: 12},
			models.EscalationHighRecurrence,
		},
		{
			"at recurrence threshold does not escalate",
			Config{RecurrenceThreshold: 10},
			Event{Alert: models.AlertPayload{Severity: models.SeverityWarning}, RecurrenceCount: 10},
			"",
		},
		{
			"neither",
			Config{ImmediateAlertCritical: true, RecurrenceThreshold: 10},
			Event{Alert: models.AlertPayload{Severity: models.SeverityWarning}, RecurrenceCount: 2},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(newCaptureBroadcaster(), tt.cfg, testLogger())
			assert.Equal(t, tt.want, d.Escalation(tt.ev))
		})
	}
}

func TestDispatchPublishesToBothChannels(t *testing.T) {
	hub := newCaptureBroadcaster()
	d := New(hub, Config{RecurrenceThreshold: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	d.Enqueue(Event{
		Alert:           models.AlertPayload{SignatureID: "sig-1", Severity: models.SeverityWarning},
		RecurrenceCount: 1,
		IsNewSignature:  true,
	})

	require.Eventually(t, func() bool {
		return len(hub.get(models.ChannelAnomalyAlerts)) == 1 && len(hub.get(models.ChannelStreamMetrics)) == 1
	}, time.Second, 5*time.Millisecond)

	alerts := hub.get(models.ChannelAnomalyAlerts)
	assert.Equal(t, models.AlertTypeNew, alerts[0].Type)
	assert.Equal(t, "sig-1", alerts[0].Alert.SignatureID)
	assert.Empty(t, hub.get(models.ChannelEscalations))

	cancel()
	d.Wait(time.Second)
}

func TestDispatchEscalates(t *testing.T) {
	hub := newCaptureBroadcaster()
	d := New(hub, Config{ImmediateAlertCritical: true, RecurrenceThreshold: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	d.Enqueue(Event{
		Alert:           models.AlertPayload{SignatureID: "sig-1", Severity: models.SeverityCritical},
		RecurrenceCount: 1,
	})

	require.Eventually(t, func() bool {
		return len(hub.get(models.ChannelEscalations)) == 1
	}, time.Second, 5*time.Millisecond)

	esc := hub.get(models.ChannelEscalations)[0]
	assert.Equal(t, models.AlertTypeEscalation, esc.Type)
	assert.Equal(t, models.EscalationCriticalSeverity, esc.EscalationReason)
	assert.True(t, esc.RequiresImmediateAttention)

	// the critical alert still goes out on the regular channels
	assert.Len(t, hub.get(models.ChannelAnomalyAlerts), 1)
	assert.Equal(t, models.AlertTypeCritical, hub.get(models.ChannelAnomalyAlerts)[0].Type)

	cancel()
	d.Wait(time.Second)
}

func TestDispatchDrainsQueueOnShutdown(t *testing.T) {
	hub := newCaptureBroadcaster()
	d := New(hub, Config{RecurrenceThreshold: 10}, testLogger())

	for i := 0; i < 10; i++ {
		d.Enqueue(Event{Alert: models.AlertPayload{SignatureID: "sig-1", Severity: models.SeverityInfo}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	go d.Run(ctx)
	d.Wait(time.Second)

	assert.Len(t, hub.get(models.ChannelAnomalyAlerts), 10)
}

func TestEnqueueAfterStopCountsDrop(t *testing.T) {
	hub := newCaptureBroadcaster()
	d := New(hub, Config{}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	cancel()
	d.Wait(time.Second)

	before := testutil.ToFloat64(metrics.BroadcastFailuresTotal.WithLabelValues("stopped"))
	d.Enqueue(Event{Alert: models.AlertPayload{SignatureID: "sig-late", Severity: models.SeverityInfo}})
	after := testutil.ToFloat64(metrics.BroadcastFailuresTotal.WithLabelValues("stopped"))

	assert.Equal(t, before+1, after)
	assert.Empty(t, hub.get(models.ChannelAnomalyAlerts))
}
