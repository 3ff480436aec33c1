package service

import (
	"context"
	"fmt"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/repository"
)

// SuggestionService drives the fix suggestion review lifecycle:
// suggested -> approved -> applied -> verified, with rejected as a terminal
// branch off suggested.
type SuggestionService interface {
	Approve(ctx context.Context, suggestionID string) error
	Reject(ctx context.Context, suggestionID string) error
	// Apply records a FixAction binding the suggestion to the occurrence it
	// was applied against.
	Apply(ctx context.Context, suggestionID, occurrenceID, appliedBy, notes string) (*models.FixAction, error)
	// Verify records the outcome of an applied fix; the parent suggestion
	// transitions to verified as a side effect.
	Verify(ctx context.Context, fixActionID string, successful bool) error
	List(ctx context.Context, signatureID string) ([]*models.FixSuggestion, error)
}

type suggestionService struct {
	suggestions repository.SuggestionRepository
	occurrences repository.OccurrenceRepository
}

// NewSuggestionService creates a new suggestion service.
func NewSuggestionService(suggestions repository.SuggestionRepository, occurrences repository.OccurrenceRepository) SuggestionService {
	return &suggestionService{suggestions: suggestions, occurrences: occurrences}
}

func (s *suggestionService) Approve(ctx context.Context, suggestionID string) error {
	return s.transition(ctx, suggestionID, models.SuggestionStatusApproved, models.SuggestionStatusSuggested)
}

func (s *suggestionService) Reject(ctx context.Context, suggestionID string) error {
	return s.transition(ctx, suggestionID, models.SuggestionStatusRejected, models.SuggestionStatusSuggested)
}

func (s *suggestionService) Apply(ctx context.Context, suggestionID, occurrenceID, appliedBy, notes string) (*models.FixAction, error) {
	sugg, err := s.suggestions.GetSuggestion(ctx, suggestionID)
	if err != nil {
		return nil, err
	}
	// Auto-applicable suggestions may skip the approval step.
	if sugg.Status != models.SuggestionStatusApproved &&
		!(sugg.Status == models.SuggestionStatusSuggested && sugg.AutoApplicable) {
		return nil, fmt.Errorf("suggestion %s cannot be applied from status %q", suggestionID, sugg.Status)
	}
	if _, err := s.occurrences.GetOccurrence(ctx, occurrenceID); err != nil {
		return nil, err
	}

	action := &models.FixAction{
		SuggestionID: suggestionID,
		OccurrenceID: occurrenceID,
		AppliedBy:    appliedBy,
		Notes:        notes,
	}
	if err := s.suggestions.CreateFixAction(ctx, action); err != nil {
		return nil, err
	}
	if err := s.suggestions.UpdateSuggestionStatus(ctx, suggestionID, models.SuggestionStatusApplied); err != nil {
		return nil, err
	}
	return action, nil
}

func (s *suggestionService) Verify(ctx context.Context, fixActionID string, successful bool) error {
	return s.suggestions.VerifyFixAction(ctx, fixActionID, successful)
}

func (s *suggestionService) List(ctx context.Context, signatureID string) ([]*models.FixSuggestion, error) {
	return s.suggestions.ListSuggestions(ctx, signatureID)
}

func (s *suggestionService) transition(ctx context.Context, id string, to models.SuggestionStatus, allowedFrom ...models.SuggestionStatus) error {
	sugg, err := s.suggestions.GetSuggestion(ctx, id)
	if err != nil {
		return err
	}
	ok := false
	for _, from := range allowedFrom {
		if sugg.Status == from {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("suggestion %s cannot move to %q from %q", id, to, sugg.Status)
	}
	return s.suggestions.UpdateSuggestionStatus(ctx, id, to)
}
