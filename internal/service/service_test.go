package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/internal/repository"
	"github.com/streamwatch/streamwatch-backend/migrations"
)

func setupRepo(t *testing.T) *repository.SQLiteRepository {
	t.Helper()
	repo, err := repository.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	schema, err := migrations.FS.ReadFile("001_initial_schema.sql")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(string(schema)))
	return repo
}

func seedSignature(t *testing.T, repo *repository.SQLiteRepository) *models.Signature {
	t.Helper()
	now := time.Now().UTC()
	sig, _, err := repo.UpsertSignature(context.Background(), &models.Signature{
		ID:              uuid.New().String(),
		Hash:            uuid.New().String(),
		AnomalyType:     "error_event",
		Severity:        models.SeverityError,
		Status:          models.SignatureStatusActive,
		EndpointPattern: "/orders/{id}",
		FirstSeen:       now,
		LastSeen:        now,
	})
	require.NoError(t, err)
	return sig
}

func seedOccurrence(t *testing.T, repo *repository.SQLiteRepository, signatureID string, at time.Time) *models.Occurrence {
	t.Helper()
	occ := &models.Occurrence{
		ID:          uuid.New().String(),
		SignatureID: signatureID,
		Endpoint:    "/orders/7",
		Severity:    models.SeverityError,
		Status:      models.OccurrenceStatusNew,
		CreatedAt:   at,
	}
	require.NoError(t, repo.CreateOccurrence(context.Background(), occ))
	return occ
}

func seedFixSuggestion(t *testing.T, repo *repository.SQLiteRepository, signatureID string, autoApplicable bool) *models.FixSuggestion {
	t.Helper()
	now := time.Now().UTC()
	s := &models.FixSuggestion{
		ID:             uuid.New().String(),
		SignatureID:    signatureID,
		Title:          "Add retry with backoff",
		FixType:        models.FixTypeRetryPolicy,
		Confidence:     0.8,
		PriorityScore:  7,
		Status:         models.SuggestionStatusSuggested,
		AutoApplicable: autoApplicable,
		RiskLevel:      models.RiskLow,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.CreateSuggestions(context.Background(), []*models.FixSuggestion{s}))
	return s
}

func TestSuggestionLifecycle(t *testing.T) {
	repo := setupRepo(t)
	svc := NewSuggestionService(repo, repo)
	ctx := context.Background()

	sig := seedSignature(t, repo)
	occ := seedOccurrence(t, repo, sig.ID, time.Now().UTC())
	sugg := seedFixSuggestion(t, repo, sig.ID, false)

	// Apply before approval is rejected.
	_, err := svc.Apply(ctx, sugg.ID, occ.ID, "oncall", "")
	assert.Error(t, err)

	require.NoError(t, svc.Approve(ctx, sugg.ID))

	// Approve is not idempotent: the suggestion already left suggested.
	assert.Error(t, svc.Approve(ctx, sugg.ID))
	assert.Error(t, svc.Reject(ctx, sugg.ID))

	action, err := svc.Apply(ctx, sugg.ID, occ.ID, "oncall", "rolled out retry policy")
	require.NoError(t, err)
	require.NotEmpty(t, action.ID)

	stored, err := repo.GetSuggestion(ctx, sugg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusApplied, stored.Status)

	require.NoError(t, svc.Verify(ctx, action.ID, true))
	stored, err = repo.GetSuggestion(ctx, sugg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusVerified, stored.Status)

	verified, err := repo.GetFixAction(ctx, action.ID)
	require.NoError(t, err)
	require.NotNil(t, verified.Successful)
	assert.True(t, *verified.Successful)
}

func TestApplyAutoApplicableSkipsApproval(t *testing.T) {
	repo := setupRepo(t)
	svc := NewSuggestionService(repo, repo)
	ctx := context.Background()

	sig := seedSignature(t, repo)
	occ := seedOccurrence(t, repo, sig.ID, time.Now().UTC())
	sugg := seedFixSuggestion(t, repo, sig.ID, true)

	action, err := svc.Apply(ctx, sugg.ID, occ.ID, "automation", "")
	require.NoError(t, err)
	assert.NotEmpty(t, action.ID)
}

func TestApplyRequiresExistingOccurrence(t *testing.T) {
	repo := setupRepo(t)
	svc := NewSuggestionService(repo, repo)
	ctx := context.Background()

	sig := seedSignature(t, repo)
	sugg := seedFixSuggestion(t, repo, sig.ID, true)

	_, err := svc.Apply(ctx, sugg.ID, "missing", "oncall", "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestResolveOccurrenceRefreshesReliability(t *testing.T) {
	repo := setupRepo(t)
	svc := NewResolutionService(repo, repo)
	ctx := context.Background()

	sig := seedSignature(t, repo)
	occ := seedOccurrence(t, repo, sig.ID, time.Now().UTC().Add(-30*time.Minute))

	require.NoError(t, svc.ResolveOccurrence(ctx, occ.ID, "oncall", "fixed upstream"))

	stored, err := repo.GetOccurrence(ctx, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceStatusResolved, stored.Status)
	require.NotNil(t, stored.ResolvedAt)

	updated, err := repo.GetSignature(ctx, sig.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.MTTRSeconds)
	assert.InDelta(t, 1800, *updated.MTTRSeconds, 60)
}

func TestMarkFalsePositiveLeavesReliabilityAlone(t *testing.T) {
	repo := setupRepo(t)
	svc := NewResolutionService(repo, repo)
	ctx := context.Background()

	sig := seedSignature(t, repo)
	occ := seedOccurrence(t, repo, sig.ID, time.Now().UTC())

	require.NoError(t, svc.MarkFalsePositive(ctx, occ.ID, "oncall", "test traffic"))

	stored, err := repo.GetOccurrence(ctx, occ.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OccurrenceStatusFalsePositive, stored.Status)

	updated, err := repo.GetSignature(ctx, sig.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.MTTRSeconds)
}

func TestTransitionSignatureValidatesStatus(t *testing.T) {
	repo := setupRepo(t)
	svc := NewResolutionService(repo, repo)
	ctx := context.Background()

	sig := seedSignature(t, repo)

	require.NoError(t, svc.TransitionSignature(ctx, sig.ID, models.SignatureStatusIgnored))
	stored, err := repo.GetSignature(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SignatureStatusIgnored, stored.Status)

	assert.Error(t, svc.TransitionSignature(ctx, sig.ID, models.SignatureStatus("archived")))
}
