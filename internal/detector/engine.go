// Package detector implements the anomaly detection pipeline: declarative
// rule matching, statistical outlier detection, signature deduplication,
// recurrence tracking and alert dispatch.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamwatch/streamwatch-backend/internal/dispatch"
	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/pkg/metrics"
	"github.com/streamwatch/streamwatch-backend/internal/rules"
	"github.com/streamwatch/streamwatch-backend/internal/suggest"
)

// Store is the persistence contract the engine needs. The sqlx repository
// implements it; tests provide fakes.
type Store interface {
	// UpsertSignature inserts the signature if its hash is absent, otherwise
	// increments occurrence_count and advances last_seen. It returns the
	// stored row and whether this call created it.
	UpsertSignature(ctx context.Context, sig *models.Signature) (*models.Signature, bool, error)
	CreateOccurrence(ctx context.Context, occ *models.Occurrence) error
	RecentOccurrences(ctx context.Context, signatureID string, limit int) ([]*models.Occurrence, error)
	SaveRecurrence(ctx context.Context, tracker *models.RecurrenceTracker) error
	FixActionStats(ctx context.Context, signatureID string) (attempted, successful int64, err error)
	CreateSuggestions(ctx context.Context, suggestions []*models.FixSuggestion) error
}

// Engine runs the full detection pipeline for one event at a time. Many
// events may be in flight concurrently; mutations for the same signature hash
// are serialized through a per-hash lock.
type Engine struct {
	provider    *rules.Provider
	store       Store
	matcher     *Matcher
	statistical *StatisticalDetector
	suggester   *suggest.Engine
	dispatcher  *dispatch.Dispatcher
	logger      *slog.Logger

	locks keyedMutex
}

// NewEngine wires the detection pipeline.
func NewEngine(provider *rules.Provider, store Store, suggester *suggest.Engine, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Engine {
	return &Engine{
		provider:    provider,
		store:       store,
		matcher:     NewMatcher(logger),
		statistical: NewStatisticalDetector(),
		suggester:   suggester,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// candidate is one anomaly to persist, from either source.
type candidate struct {
	anomalyType string
	severity    models.Severity
	ruleName    string
	pattern     string
	confidence  float64
	fixes       []rules.RuleFix
	tags        []string
}

// DetectEvent evaluates one stream event. It returns the highest-ranked
// anomaly with lower-ranked matches attached, nil when nothing matched, or an
// error when persistence failed and the caller should decide about a retry.
func (e *Engine) DetectEvent(ctx context.Context, event *models.StreamEvent) (*models.AnomalyResult, error) {
	start := time.Now()
	defer func() {
		metrics.DetectionDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	ruleset := e.provider.Current()
	candidates := e.collect(event, ruleset)
	if len(candidates) == 0 {
		metrics.EventsProcessedTotal.WithLabelValues("clean").Inc()
		return nil, nil
	}

	var primary *models.AnomalyResult
	var additional []models.AnomalyRef
	for i, c := range candidates {
		result, err := e.process(ctx, event, c, ruleset)
		if err != nil {
			if i == 0 {
				metrics.EventsProcessedTotal.WithLabelValues("error").Inc()
				return nil, err
			}
			// Secondary matches are attachments; losing one is logged, not fatal.
			e.logger.Error("secondary anomaly persistence failed", "anomaly_type", c.anomalyType, "error", err)
			continue
		}
		metrics.AnomaliesDetectedTotal.WithLabelValues(c.anomalyType, string(c.severity)).Inc()
		if i == 0 {
			primary = result
		} else {
			additional = append(additional, models.AnomalyRef{
				Type:         c.anomalyType,
				Severity:     c.severity,
				OccurrenceID: result.OccurrenceID,
			})
		}
	}

	primary.AdditionalAnomalies = additional
	primary.TotalAnomalyCount = len(additional) + 1
	metrics.EventsProcessedTotal.WithLabelValues("anomaly").Inc()
	return primary, nil
}

// collect gathers ranked rule matches; the statistical detector runs only
// when no declarative rule matched.
func (e *Engine) collect(event *models.StreamEvent, ruleset *rules.Ruleset) []candidate {
	matches := e.matcher.EvaluateAll(event, ruleset)
	if len(matches) > 0 {
		out := make([]candidate, 0, len(matches))
		for _, m := range matches {
			out = append(out, candidate{
				anomalyType: m.Rule.AnomalyType,
				severity:    m.Rule.Severity,
				ruleName:    m.Rule.Name,
				pattern:     m.Rule.ConditionJSON(),
				confidence:  m.Confidence,
				fixes:       m.Rule.Fixes,
				tags:        m.Rule.Tags,
			})
		}
		return out
	}

	if stat := e.statistical.Detect(event, ruleset.Thresholds.Latency); stat != nil {
		return []candidate{{
			anomalyType: stat.AnomalyType,
			severity:    stat.Severity,
			confidence:  stat.Confidence,
		}}
	}
	return nil
}

// process persists one candidate: signature upsert, occurrence append,
// recurrence recompute, suggestions on a new signature, and async dispatch.
func (e *Engine) process(ctx context.Context, event *models.StreamEvent, c candidate, ruleset *rules.Ruleset) (*models.AnomalyResult, error) {
	normalized := NormalizeEndpoint(event.Endpoint)
	hash := SignatureHash(c.anomalyType, normalized, event.ExceptionClass, c.ruleName)

	// Two occurrences of the same signature must not interleave their
	// upsert and recurrence recompute.
	unlock := e.locks.lock(hash)
	defer unlock()

	now := time.Now().UTC()
	sig, created, err := e.store.UpsertSignature(ctx, &models.Signature{
		ID:              uuid.New().String(),
		Hash:            hash,
		AnomalyType:     c.anomalyType,
		Severity:        c.severity,
		Status:          models.SignatureStatusActive,
		Pattern:         c.pattern,
		EndpointPattern: normalized,
		ErrorClass:      event.ExceptionClass,
		RuleName:        c.ruleName,
		OccurrenceCount: 1,
		FirstSeen:       now,
		LastSeen:        now,
		Tags:            c.tags,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert signature %s: %w", hash, err)
	}
	if created {
		metrics.SignaturesCreatedTotal.Inc()
	}

	occ := &models.Occurrence{
		ID:               uuid.New().String(),
		SignatureID:      sig.ID,
		Endpoint:         event.Endpoint,
		ErrorMessage:     event.ErrorMessage,
		ExceptionClass:   event.ExceptionClass,
		StackHash:        event.StackHash,
		HTTPStatusCode:   event.HTTPStatusCode,
		LatencyMS:        event.LatencyMS,
		Severity:         c.severity,
		Payload:          marshalPayload(event.Payload),
		Status:           models.OccurrenceStatusNew,
		ClientAppVersion: event.ClientAppVersion,
		ClientOSVersion:  event.ClientOSVersion,
		ClientDevice:     event.ClientDevice,
		CorrelationID:    event.CorrelationID,
		CreatedAt:        now,
	}
	if !event.OccurredAt.IsZero() {
		occ.CreatedAt = event.OccurredAt
	}
	if err := e.store.CreateOccurrence(ctx, occ); err != nil {
		return nil, fmt.Errorf("append occurrence for signature %s: %w", sig.ID, err)
	}

	if err := e.recomputeRecurrence(ctx, sig, ruleset); err != nil {
		return nil, err
	}

	if created {
		e.generateSuggestions(ctx, sig, c.fixes, ruleset.Thresholds.Confidence)
	}

	e.dispatcher.Enqueue(dispatch.Event{
		Alert: models.AlertPayload{
			ID:              occ.ID,
			SignatureID:     sig.ID,
			Type:            c.anomalyType,
			Severity:        c.severity,
			Endpoint:        event.Endpoint,
			CorrelationID:   event.CorrelationID,
			LatencyMS:       event.LatencyMS,
			ErrorMessage:    event.ErrorMessage,
			CreatedAt:       occ.CreatedAt,
			IsNewSignature:  created,
			RecurrenceCount: sig.OccurrenceCount,
			ClientInfo: models.ClientInfo{
				AppVersion:  event.ClientAppVersion,
				OSVersion:   event.ClientOSVersion,
				DeviceModel: event.ClientDevice,
			},
		},
		RecurrenceCount:   sig.OccurrenceCount,
		IsNewSignature:    created,
		FrequentThreshold: ruleset.Thresholds.Recurrence.FrequentThreshold,
	})

	return &models.AnomalyResult{
		AnomalyType:     c.anomalyType,
		Severity:        c.severity,
		RuleName:        c.ruleName,
		Confidence:      c.confidence,
		SignatureID:     sig.ID,
		OccurrenceID:    occ.ID,
		IsNewSignature:  created,
		RecurrenceCount: sig.OccurrenceCount,
	}, nil
}

func (e *Engine) recomputeRecurrence(ctx context.Context, sig *models.Signature, ruleset *rules.Ruleset) error {
	recent, err := e.store.RecentOccurrences(ctx, sig.ID, 6)
	if err != nil {
		return fmt.Errorf("load recent occurrences for signature %s: %w", sig.ID, err)
	}
	attempted, successful, err := e.store.FixActionStats(ctx, sig.ID)
	if err != nil {
		return fmt.Errorf("load fix stats for signature %s: %w", sig.ID, err)
	}
	tracker := ComputeRecurrence(sig, recent, sig.OccurrenceCount, FixStats{Attempted: attempted, Successful: successful},
		ruleset.Thresholds.Recurrence.ChronicThreshold, time.Now().UTC())
	if err := e.store.SaveRecurrence(ctx, tracker); err != nil {
		return fmt.Errorf("save recurrence for signature %s: %w", sig.ID, err)
	}
	return nil
}

// generateSuggestions is best-effort: a storage failure loses suggestions,
// never the detection result.
func (e *Engine) generateSuggestions(ctx context.Context, sig *models.Signature, fixes []rules.RuleFix, conf rules.ConfidenceThresholds) {
	suggestions := e.suggester.Generate(sig, fixes, conf, time.Now().UTC())
	if len(suggestions) == 0 {
		return
	}
	if err := e.store.CreateSuggestions(ctx, suggestions); err != nil {
		e.logger.Error("persisting fix suggestions failed", "signature_id", sig.ID, "count", len(suggestions), "error", err)
	}
}

func marshalPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return ""
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(b)
}

// keyedMutex serializes callers per key. Entries are reference-counted and
// removed when the last holder unlocks, so the map does not grow with the
// signature population.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
