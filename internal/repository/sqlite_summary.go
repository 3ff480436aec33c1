package repository

import (
	"context"
	"fmt"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

// Summary aggregates the current signature population for dashboards.
func (r *SQLiteRepository) Summary(ctx context.Context, topN int) (*models.AnomalySummary, error) {
	if topN <= 0 {
		topN = 10
	}
	summary := &models.AnomalySummary{
		BySeverity: make(map[models.Severity]int64),
		ByStatus:   make(map[string]int64),
	}

	if err := r.db.GetContext(ctx, &summary.TotalSignatures, `SELECT COUNT(*) FROM signatures`); err != nil {
		return nil, fmt.Errorf("count signatures: %w", err)
	}
	if err := r.db.GetContext(ctx, &summary.TotalOccurrences, `SELECT COUNT(*) FROM occurrences`); err != nil {
		return nil, fmt.Errorf("count occurrences: %w", err)
	}

	var sevRows []struct {
		Severity models.Severity `db:"severity"`
		Count    int64           `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &sevRows,
		`SELECT severity, COUNT(*) AS count FROM signatures GROUP BY severity`); err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	for _, row := range sevRows {
		summary.BySeverity[row.Severity] = row.Count
	}

	var statusRows []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &statusRows,
		`SELECT status, COUNT(*) AS count FROM signatures GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, row := range statusRows {
		summary.ByStatus[row.Status] = row.Count
	}

	var top []models.SignatureSummary
	query := `
		SELECT id, hash, anomaly_type, severity, status, endpoint_pattern, occurrence_count
		FROM signatures
		ORDER BY occurrence_count DESC, last_seen DESC
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &top, query, topN); err != nil {
		return nil, fmt.Errorf("top recurring signatures: %w", err)
	}
	summary.TopRecurring = top

	var ranked []models.SuggestionRank
	rankQuery := `
		SELECT id, signature_id, title, fix_type, status,
		       confidence * 0.7 + (priority_score / 10.0) * 0.3 AS effectiveness_score
		FROM fix_suggestions
		WHERE status != 'rejected'
		ORDER BY effectiveness_score DESC
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &ranked, rankQuery, topN); err != nil {
		return nil, fmt.Errorf("rank suggestions: %w", err)
	}
	summary.TopSuggestions = ranked

	if err := r.db.GetContext(ctx, &summary.RequiresAttention,
		`SELECT COUNT(*) FROM recurrence_trackers WHERE requires_attention = 1`); err != nil {
		return nil, fmt.Errorf("count requires attention: %w", err)
	}
	return summary, nil
}
