package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/streamwatch/streamwatch-backend/internal/models"
	"github.com/streamwatch/streamwatch-backend/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), 16)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	schema, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		t.Fatalf("Failed to read embedded schema: %v", err)
	}
	if err := repo.RunMigrations(string(schema)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return repo
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func testSignature(hash string) *models.Signature {
	now := time.Now().UTC()
	return &models.Signature{
		ID:              uuid.New().String(),
		Hash:            hash,
		AnomalyType:     "latency_outlier",
		Severity:        models.SeverityWarning,
		Status:          models.SignatureStatusActive,
		EndpointPattern: "/users/{id}",
		OccurrenceCount: 1,
		FirstSeen:       now,
		LastSeen:        now,
		Tags:            []string{"latency"},
	}
}

func testOccurrence(signatureID string, at time.Time) *models.Occurrence {
	return &models.Occurrence{
		ID:          uuid.New().String(),
		SignatureID: signatureID,
		Endpoint:    "/users/42",
		LatencyMS:   350,
		Severity:    models.SeverityWarning,
		Status:      models.OccurrenceStatusNew,
		CreatedAt:   at,
	}
}

func TestUpsertSignatureCreates(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	sig := testSignature("hash-a")
	stored, created, err := repo.UpsertSignature(ctx, sig)
	if err != nil {
		t.Fatalf("Failed to upsert signature: %v", err)
	}
	if !created {
		t.Error("First upsert should report created")
	}
	if stored.ID != sig.ID {
		t.Errorf("Stored ID = %s, want %s", stored.ID, sig.ID)
	}
	if stored.OccurrenceCount != 1 {
		t.Errorf("OccurrenceCount = %d, want 1", stored.OccurrenceCount)
	}
	if len(stored.Tags) != 1 || stored.Tags[0] != "latency" {
		t.Errorf("Tags not round-tripped: %v", stored.Tags)
	}
}

func TestUpsertSignatureDeduplicates(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	first := testSignature("hash-a")
	stored1, _, err := repo.UpsertSignature(ctx, first)
	if err != nil {
		t.Fatalf("Failed to upsert signature: %v", err)
	}

	// same hash, different candidate ID
	second := testSignature("hash-a")
	second.LastSeen = first.LastSeen.Add(time.Hour)
	stored2, created, err := repo.UpsertSignature(ctx, second)
	if err != nil {
		t.Fatalf("Failed to upsert duplicate signature: %v", err)
	}
	if created {
		t.Error("Duplicate upsert should not report created")
	}
	if stored2.ID != stored1.ID {
		t.Errorf("Duplicate upsert changed ID: %s != %s", stored2.ID, stored1.ID)
	}
	if stored2.OccurrenceCount != 2 {
		t.Errorf("OccurrenceCount = %d, want 2", stored2.OccurrenceCount)
	}
	if !stored2.LastSeen.After(stored1.LastSeen) {
		t.Error("LastSeen should advance on duplicate upsert")
	}
	if !stored2.FirstSeen.Equal(stored1.FirstSeen) {
		t.Error("FirstSeen must not change on duplicate upsert")
	}
}

func TestUpsertSignatureDistinctHashes(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, created, err := repo.UpsertSignature(ctx, testSignature("hash-a")); err != nil || !created {
		t.Fatalf("First signature: created=%v err=%v", created, err)
	}
	if _, created, err := repo.UpsertSignature(ctx, testSignature("hash-b")); err != nil || !created {
		t.Fatalf("Second signature: created=%v err=%v", created, err)
	}

	sigs, err := repo.ListSignatures(ctx, "", "", 10)
	if err != nil {
		t.Fatalf("Failed to list signatures: %v", err)
	}
	if len(sigs) != 2 {
		t.Errorf("Got %d signatures, want 2", len(sigs))
	}
}

func TestGetSignatureNotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetSignature(context.Background(), "missing")
	if err == nil {
		t.Fatal("Expected error for missing signature")
	}
	if !isNotFound(err) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestListSignaturesFilters(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	warning := testSignature("hash-a")
	repo.UpsertSignature(ctx, warning)
	critical := testSignature("hash-b")
	critical.Severity = models.SeverityCritical
	repo.UpsertSignature(ctx, critical)

	crits, err := repo.ListSignatures(ctx, "", string(models.SeverityCritical), 10)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(crits) != 1 || crits[0].Severity != models.SeverityCritical {
		t.Errorf("Severity filter returned %d rows", len(crits))
	}

	active, err := repo.ListSignatures(ctx, string(models.SignatureStatusActive), "", 10)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("Status filter returned %d rows, want 2", len(active))
	}
}

func TestUpdateSignatureStatus(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	stored, _, err := repo.UpsertSignature(ctx, testSignature("hash-a"))
	if err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := repo.UpdateSignatureStatus(ctx, stored.ID, models.SignatureStatusResolved); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}

	got, err := repo.GetSignature(ctx, stored.ID)
	if err != nil {
		t.Fatalf("Failed to get signature: %v", err)
	}
	if got.Status != models.SignatureStatusResolved {
		t.Errorf("Status = %s, want resolved", got.Status)
	}

	if err := repo.UpdateSignatureStatus(ctx, "missing", models.SignatureStatusResolved); !isNotFound(err) {
		t.Errorf("Expected ErrNotFound for missing signature, got %v", err)
	}
}

func TestOccurrenceLifecycle(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	sig, _, err := repo.UpsertSignature(ctx, testSignature("hash-a"))
	if err != nil {
		t.Fatalf("Failed to upsert signature: %v", err)
	}

	occ := testOccurrence(sig.ID, time.Now().UTC().Add(-time.Hour))
	if err := repo.CreateOccurrence(ctx, occ); err != nil {
		t.Fatalf("Failed to create occurrence: %v", err)
	}

	got, err := repo.GetOccurrence(ctx, occ.ID)
	if err != nil {
		t.Fatalf("Failed to get occurrence: %v", err)
	}
	if got.SignatureID != sig.ID {
		t.Errorf("SignatureID = %s, want %s", got.SignatureID, sig.ID)
	}
	if got.Status != models.OccurrenceStatusNew {
		t.Errorf("Status = %s, want new", got.Status)
	}

	if err := repo.ResolveOccurrence(ctx, occ.ID, models.OccurrenceStatusResolved, "oncall", "restarted pool"); err != nil {
		t.Fatalf("Failed to resolve occurrence: %v", err)
	}
	resolved, err := repo.GetOccurrence(ctx, occ.ID)
	if err != nil {
		t.Fatalf("Failed to get resolved occurrence: %v", err)
	}
	if resolved.Status != models.OccurrenceStatusResolved {
		t.Errorf("Status = %s, want resolved", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("ResolvedAt should be set on resolve")
	}
	if resolved.ResolvedBy != "oncall" {
		t.Errorf("ResolvedBy = %s", resolved.ResolvedBy)
	}

	mean, err := repo.MeanResolutionSeconds(ctx, sig.ID)
	if err != nil {
		t.Fatalf("Failed to compute mean resolution: %v", err)
	}
	if mean == nil {
		t.Fatal("Mean resolution should be set once an occurrence is resolved")
	}
	if *mean < 3500 || *mean > 3700 {
		t.Errorf("Mean resolution = %f, want about 3600s", *mean)
	}
}

func TestMeanResolutionSecondsNoneResolved(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	sig, _, _ := repo.UpsertSignature(ctx, testSignature("hash-a"))
	mean, err := repo.MeanResolutionSeconds(ctx, sig.ID)
	if err != nil {
		t.Fatalf("Failed to compute mean resolution: %v", err)
	}
	if mean != nil {
		t.Errorf("Mean should be nil with no resolved occurrences, got %f", *mean)
	}
}

func TestRecentOccurrencesOrderAndLimit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	sig, _, _ := repo.UpsertSignature(ctx, testSignature("hash-a"))
	base := time.Now().UTC().Add(-10 * time.Hour)
	for i := 0; i < 8; i++ {
		occ := testOccurrence(sig.ID, base.Add(time.Duration(i)*time.Hour))
		if err := repo.CreateOccurrence(ctx, occ); err != nil {
			t.Fatalf("Failed to create occurrence %d: %v", i, err)
		}
	}

	recent, err := repo.RecentOccurrences(ctx, sig.ID, 6)
	if err != nil {
		t.Fatalf("Failed to list recent occurrences: %v", err)
	}
	if len(recent) != 6 {
		t.Fatalf("Got %d occurrences, want 6", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
			t.Fatal("Occurrences must come back newest first")
		}
	}
}

func TestVersionBreakdown(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	sig, _, _ := repo.UpsertSignature(ctx, testSignature("hash-a"))
	now := time.Now().UTC()
	versions := []string{"2.1.0", "2.1.0", "2.1.0", "2.0.4", ""}
	for _, v := range versions {
		occ := testOccurrence(sig.ID, now)
		occ.ClientAppVersion = v
		if err := repo.CreateOccurrence(ctx, occ); err != nil {
			t.Fatalf("Failed to create occurrence: %v", err)
		}
	}

	breakdown, err := repo.VersionBreakdown(ctx, sig.ID)
	if err != nil {
		t.Fatalf("Failed to compute version breakdown: %v", err)
	}
	if len(breakdown) != 2 {
		t.Fatalf("Got %d version buckets, want 2 (empty version excluded)", len(breakdown))
	}
	if breakdown[0].AppVersion != "2.1.0" || breakdown[0].Count != 3 {
		t.Errorf("Top bucket = %s/%d, want 2.1.0/3", breakdown[0].AppVersion, breakdown[0].Count)
	}
}

func TestRecurrenceTrackerRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	sig, _, _ := repo.UpsertSignature(ctx, testSignature("hash-a"))
	interval := 2.5
	rate := 0.75
	tracker := &models.RecurrenceTracker{
		SignatureID:            sig.ID,
		LastOccurrenceAt:       time.Now().UTC(),
		RecurrenceCount:        7,
		TypicalIntervalHours:   &interval,
		SeverityTrend:          models.TrendWorsening,
		FixesAttempted:         4,
		SuccessfulFixes:        3,
		FixSuccessRate:         &rate,
		RequiresAttention:      true,
		AlertThresholdExceeded: false,
		UpdatedAt:              time.Now().UTC(),
	}
	if err := repo.SaveRecurrence(ctx, tracker); err != nil {
		t.Fatalf("Failed to save tracker: %v", err)
	}

	got, err := repo.GetRecurrence(ctx, sig.ID)
	if err != nil {
		t.Fatalf("Failed to get tracker: %v", err)
	}
	if got.RecurrenceCount != 7 || got.SeverityTrend != models.TrendWorsening || !got.RequiresAttention {
		t.Errorf("Tracker did not round-trip: %+v", got)
	}
	if got.TypicalIntervalHours == nil || *got.TypicalIntervalHours != 2.5 {
		t.Error("TypicalIntervalHours did not round-trip")
	}

	// save again: upsert, not insert
	tracker.RecurrenceCount = 8
	tracker.SeverityTrend = models.TrendStable
	if err := repo.SaveRecurrence(ctx, tracker); err != nil {
		t.Fatalf("Failed to re-save tracker: %v", err)
	}
	got, err = repo.GetRecurrence(ctx, sig.ID)
	if err != nil {
		t.Fatalf("Failed to re-get tracker: %v", err)
	}
	if got.RecurrenceCount != 8 || got.SeverityTrend != models.TrendStable {
		t.Errorf("Tracker upsert did not overwrite: %+v", got)
	}
}
