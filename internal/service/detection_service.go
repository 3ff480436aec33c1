// Package service wires the detection engine, repositories and dispatcher
// behind the interfaces the API layer consumes.
package service

import (
	"context"

	"github.com/streamwatch/streamwatch-backend/internal/detector"
	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/rules"
)

// DetectionService runs events through the anomaly pipeline.
type DetectionService interface {
	// Detect returns the primary anomaly for an event, nil when the event is
	// clean, or an error when persistence failed and the caller may retry.
	Detect(ctx context.Context, event *models.StreamEvent) (*models.AnomalyResult, error)
	// ReloadRules atomically swaps in a freshly loaded rules document. It
	// never blocks in-flight detections.
	ReloadRules() error
}

type detectionService struct {
	engine   *detector.Engine
	provider *rules.Provider
}

// NewDetectionService creates a new detection service.
func NewDetectionService(engine *detector.Engine, provider *rules.Provider) DetectionService {
	return &detectionService{engine: engine, provider: provider}
}

func (s *detectionService) Detect(ctx context.Context, event *models.StreamEvent) (*models.AnomalyResult, error) {
	return s.engine.DetectEvent(ctx, event)
}

func (s *detectionService) ReloadRules() error {
	return s.provider.Reload()
}
