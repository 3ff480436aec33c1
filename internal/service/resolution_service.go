package service

import (
	"context"
	"fmt"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/repository"
)

// ResolutionService drives occurrence triage and keeps the parent signature's
// reliability numbers (MTTR, MTBF) current.
type ResolutionService interface {
	ResolveOccurrence(ctx context.Context, occurrenceID, resolvedBy, note string) error
	MarkFalsePositive(ctx context.Context, occurrenceID, markedBy, note string) error
	TransitionSignature(ctx context.Context, signatureID string, status models.SignatureStatus) error
}

type resolutionService struct {
	signatures  repository.SignatureRepository
	occurrences repository.OccurrenceRepository
}

// NewResolutionService creates a new resolution service.
func NewResolutionService(signatures repository.SignatureRepository, occurrences repository.OccurrenceRepository) ResolutionService {
	return &resolutionService{signatures: signatures, occurrences: occurrences}
}

func (s *resolutionService) ResolveOccurrence(ctx context.Context, occurrenceID, resolvedBy, note string) error {
	occ, err := s.occurrences.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return err
	}
	if err := s.occurrences.ResolveOccurrence(ctx, occurrenceID, models.OccurrenceStatusResolved, resolvedBy, note); err != nil {
		return err
	}
	return s.refreshReliability(ctx, occ.SignatureID)
}

func (s *resolutionService) MarkFalsePositive(ctx context.Context, occurrenceID, markedBy, note string) error {
	return s.occurrences.ResolveOccurrence(ctx, occurrenceID, models.OccurrenceStatusFalsePositive, markedBy, note)
}

func (s *resolutionService) TransitionSignature(ctx context.Context, signatureID string, status models.SignatureStatus) error {
	switch status {
	case models.SignatureStatusActive, models.SignatureStatusResolved,
		models.SignatureStatusIgnored, models.SignatureStatusMonitoring:
	default:
		return fmt.Errorf("invalid signature status %q", status)
	}
	return s.signatures.UpdateSignatureStatus(ctx, signatureID, status)
}

// refreshReliability recomputes MTTR from resolved occurrences and MTBF from
// the observed lifetime of the signature.
func (s *resolutionService) refreshReliability(ctx context.Context, signatureID string) error {
	mttr, err := s.occurrences.MeanResolutionSeconds(ctx, signatureID)
	if err != nil {
		return err
	}
	sig, err := s.signatures.GetSignature(ctx, signatureID)
	if err != nil {
		return err
	}
	var mtbf *float64
	if sig.OccurrenceCount > 1 {
		hours := sig.LastSeen.Sub(sig.FirstSeen).Hours() / float64(sig.OccurrenceCount-1)
		mtbf = &hours
	}
	return s.signatures.UpdateSignatureReliability(ctx, signatureID, mttr, mtbf)
}
