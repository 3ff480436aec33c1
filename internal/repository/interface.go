package repository

import (
	"context"
	"errors"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// SignatureRepository defines signature data access methods.
type SignatureRepository interface {
	// UpsertSignature is the dedup entry point: insert-if-absent keyed on
	// hash, else increment occurrence_count and advance last_seen. Returns
	// the stored row and whether this call created it.
	UpsertSignature(ctx context.Context, sig *models.Signature) (*models.Signature, bool, error)
	GetSignature(ctx context.Context, id string) (*models.Signature, error)
	GetSignatureByHash(ctx context.Context, hash string) (*models.Signature, error)
	ListSignatures(ctx context.Context, status, severity string, limit int) ([]*models.Signature, error)
	UpdateSignatureStatus(ctx context.Context, id string, status models.SignatureStatus) error
	UpdateSignatureReliability(ctx context.Context, id string, mttrSeconds, mtbfHours *float64) error
}

// OccurrenceRepository defines occurrence data access methods.
type OccurrenceRepository interface {
	CreateOccurrence(ctx context.Context, occ *models.Occurrence) error
	GetOccurrence(ctx context.Context, id string) (*models.Occurrence, error)
	ListOccurrences(ctx context.Context, signatureID string, limit int) ([]*models.Occurrence, error)
	RecentOccurrences(ctx context.Context, signatureID string, limit int) ([]*models.Occurrence, error)
	ResolveOccurrence(ctx context.Context, id string, status models.OccurrenceStatus, resolvedBy, note string) error
	// MeanResolutionSeconds averages resolution time over resolved
	// occurrences of a signature; nil when none are resolved yet.
	MeanResolutionSeconds(ctx context.Context, signatureID string) (*float64, error)
	VersionBreakdown(ctx context.Context, signatureID string) ([]*models.VersionCount, error)
}

// RecurrenceRepository stores the derived tracker per signature.
type RecurrenceRepository interface {
	SaveRecurrence(ctx context.Context, tracker *models.RecurrenceTracker) error
	GetRecurrence(ctx context.Context, signatureID string) (*models.RecurrenceTracker, error)
}

// SuggestionRepository defines fix suggestion and fix action access.
type SuggestionRepository interface {
	CreateSuggestions(ctx context.Context, suggestions []*models.FixSuggestion) error
	GetSuggestion(ctx context.Context, id string) (*models.FixSuggestion, error)
	ListSuggestions(ctx context.Context, signatureID string) ([]*models.FixSuggestion, error)
	UpdateSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus) error
	CreateFixAction(ctx context.Context, action *models.FixAction) error
	GetFixAction(ctx context.Context, id string) (*models.FixAction, error)
	VerifyFixAction(ctx context.Context, id string, successful bool) error
	FixActionStats(ctx context.Context, signatureID string) (attempted, successful int64, err error)
}

// SummaryRepository aggregates dashboard statistics.
type SummaryRepository interface {
	Summary(ctx context.Context, topN int) (*models.AnomalySummary, error)
}
