package service

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/repository"
)

// SummaryService serves the dashboard aggregate view.
type SummaryService interface {
	Summary(ctx context.Context, topN int) (*models.AnomalySummary, error)
}

type summaryService struct {
	repo  repository.SummaryRepository
	group singleflight.Group
}

// NewSummaryService creates a summary service. Concurrent requests for the
// same summary collapse into a single repository query.
func NewSummaryService(repo repository.SummaryRepository) SummaryService {
	return &summaryService{repo: repo}
}

func (s *summaryService) Summary(ctx context.Context, topN int) (*models.AnomalySummary, error) {
	if topN <= 0 {
		topN = 10
	}
	key := "summary:" + strconv.Itoa(topN)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.repo.Summary(ctx, topN)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.AnomalySummary), nil
}
