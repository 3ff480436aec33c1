package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

// SuggestionRepository implementation

func (r *SQLiteRepository) CreateSuggestions(ctx context.Context, suggestions []*models.FixSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin suggestions tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO fix_suggestions (
			id, signature_id, title, description, fix_type, confidence,
			priority_score, patch_template, implementation_steps, status,
			auto_applicable, risk_level, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, s := range suggestions {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		steps, err := json.Marshal(s.ImplementationSteps)
		if err != nil {
			return fmt.Errorf("encode implementation steps: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query,
			s.ID,
			s.SignatureID,
			s.Title,
			s.Description,
			s.FixType,
			s.Confidence,
			s.PriorityScore,
			s.PatchTemplate,
			string(steps),
			s.Status,
			s.AutoApplicable,
			s.RiskLevel,
			s.CreatedAt,
			s.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert suggestion %s: %w", s.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetSuggestion(ctx context.Context, id string) (*models.FixSuggestion, error) {
	var s models.FixSuggestion
	err := r.db.GetContext(ctx, &s, `SELECT * FROM fix_suggestions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get suggestion %s: %w", id, err)
	}
	decodeSuggestionSteps(&s)
	return &s, nil
}

func (r *SQLiteRepository) ListSuggestions(ctx context.Context, signatureID string) ([]*models.FixSuggestion, error) {
	var list []*models.FixSuggestion
	query := `
		SELECT * FROM fix_suggestions
		WHERE signature_id = ?
		ORDER BY priority_score DESC, confidence DESC
	`
	if err := r.db.SelectContext(ctx, &list, query, signatureID); err != nil {
		return nil, fmt.Errorf("list suggestions for signature %s: %w", signatureID, err)
	}
	for _, s := range list {
		decodeSuggestionSteps(s)
	}
	return list, nil
}

func (r *SQLiteRepository) UpdateSuggestionStatus(ctx context.Context, id string, status models.SuggestionStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE fix_suggestions SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update suggestion status %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected update suggestion status %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateFixAction(ctx context.Context, action *models.FixAction) error {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO fix_actions (id, suggestion_id, occurrence_id, applied_by, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		action.ID,
		action.SuggestionID,
		action.OccurrenceID,
		action.AppliedBy,
		action.Notes,
		action.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create fix action: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetFixAction(ctx context.Context, id string) (*models.FixAction, error) {
	var action models.FixAction
	err := r.db.GetContext(ctx, &action, `SELECT * FROM fix_actions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fix action %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get fix action %s: %w", id, err)
	}
	return &action, nil
}

// VerifyFixAction records the outcome of an applied fix and, per the audit
// contract, transitions the parent suggestion to verified in the same
// transaction.
func (r *SQLiteRepository) VerifyFixAction(ctx context.Context, id string, successful bool) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verify tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE fix_actions SET successful = ?, verified_at = ? WHERE id = ?`,
		successful, now, id)
	if err != nil {
		return fmt.Errorf("verify fix action %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected verify fix action %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("fix action %s: %w", id, ErrNotFound)
	}

	var suggestionID string
	if err := tx.GetContext(ctx, &suggestionID, `SELECT suggestion_id FROM fix_actions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("load suggestion for fix action %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE fix_suggestions SET status = ?, updated_at = ? WHERE id = ?`,
		models.SuggestionStatusVerified, now, suggestionID); err != nil {
		return fmt.Errorf("mark suggestion %s verified: %w", suggestionID, err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) FixActionStats(ctx context.Context, signatureID string) (attempted, successful int64, err error) {
	var stats struct {
		Attempted  int64 `db:"attempted"`
		Successful int64 `db:"successful"`
	}
	query := `
		SELECT COUNT(*) AS attempted,
		       COALESCE(SUM(CASE WHEN fa.successful = 1 THEN 1 ELSE 0 END), 0) AS successful
		FROM fix_actions fa
		JOIN fix_suggestions fs ON fa.suggestion_id = fs.id
		WHERE fs.signature_id = ?
	`
	if err := r.db.GetContext(ctx, &stats, query, signatureID); err != nil {
		return 0, 0, fmt.Errorf("fix action stats for signature %s: %w", signatureID, err)
	}
	return stats.Attempted, stats.Successful, nil
}

func decodeSuggestionSteps(s *models.FixSuggestion) {
	if s.StepsRaw != "" {
		_ = json.Unmarshal([]byte(s.StepsRaw), &s.ImplementationSteps)
	}
}
