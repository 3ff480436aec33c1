package detector

import (
	"time"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

// FixStats carries the fix-action inputs for a recurrence recompute.
type FixStats struct {
	Attempted  int64
	Successful int64
}

// ComputeRecurrence rebuilds the tracker for a signature from scratch. recent
// holds up to the last 6 occurrences in descending time order; totalCount is
// the signature's full occurrence count. The tracker is always recomputed
// wholesale, never patched field by field.
func ComputeRecurrence(sig *models.Signature, recent []*models.Occurrence, totalCount int64, fixes FixStats, recurrenceThreshold int64, now time.Time) *models.RecurrenceTracker {
	tracker := &models.RecurrenceTracker{
		SignatureID:     sig.ID,
		RecurrenceCount: totalCount,
		SeverityTrend:   models.TrendStable,
		FixesAttempted:  fixes.Attempted,
		SuccessfulFixes: fixes.Successful,
		UpdatedAt:       now,
	}
	if len(recent) > 0 {
		tracker.LastOccurrenceAt = recent[0].CreatedAt
	}

	// Mean of up to 5 inter-arrival gaps over the last 6 occurrences. With
	// fewer than 2 occurrences the interval stays unset.
	if len(recent) >= 2 {
		window := recent
		if len(window) > 6 {
			window = window[:6]
		}
		var totalHours float64
		gaps := 0
		for i := 0; i < len(window)-1; i++ {
			gap := window[i].CreatedAt.Sub(window[i+1].CreatedAt).Hours()
			if gap < 0 {
				gap = -gap
			}
			totalHours += gap
			gaps++
		}
		mean := totalHours / float64(gaps)
		tracker.TypicalIntervalHours = &mean
	}

	// Trend compares the oldest and newest of the last 5 occurrences by the
	// severity each occurrence was assigned when it was detected.
	if len(recent) >= 2 {
		sample := recent
		if len(sample) > 5 {
			sample = sample[:5]
		}
		newest := sample[0].Severity.Score()
		oldest := sample[len(sample)-1].Severity.Score()
		switch {
		case newest > oldest:
			tracker.SeverityTrend = models.TrendWorsening
		case newest < oldest:
			tracker.SeverityTrend = models.TrendImproving
		}
	}

	if fixes.Attempted > 0 {
		rate := float64(fixes.Successful) / float64(fixes.Attempted)
		tracker.FixSuccessRate = &rate
	}

	// An unset success rate counts as 0 for the attention check.
	lowFixRate := tracker.FixSuccessRate == nil || *tracker.FixSuccessRate < 0.5
	tracker.RequiresAttention = totalCount > 5 ||
		tracker.SeverityTrend == models.TrendWorsening ||
		lowFixRate

	tracker.AlertThresholdExceeded = totalCount > recurrenceThreshold ||
		sig.Severity == models.SeverityCritical ||
		sig.Severity == models.SeverityError

	return tracker
}
