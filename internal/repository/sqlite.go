// Package repository implements persistence for signatures, occurrences,
// recurrence trackers and fix suggestions on SQLite via sqlx.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/streamwatch/streamwatch-backend/internal/models"
)

// SQLiteRepository implements all repository interfaces using SQLite.
type SQLiteRepository struct {
	db *sqlx.DB

	// sigCache short-circuits repeated GetSignature reads on hot signatures.
	// Entries are dropped on any write to the same signature.
	sigCache *lru.Cache[string, *models.Signature]
}

// NewSQLiteRepository opens (or creates) the database at dbPath. cacheSize
// bounds the signature read cache; 0 disables it.
func NewSQLiteRepository(dbPath string, cacheSize int) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	r := &SQLiteRepository{db: db}
	if cacheSize > 0 {
		cache, err := lru.New[string, *models.Signature](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to build signature cache: %w", err)
		}
		r.sigCache = cache
	}
	return r, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// SignatureRepository implementation

func (r *SQLiteRepository) UpsertSignature(ctx context.Context, sig *models.Signature) (*models.Signature, bool, error) {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	tags, err := json.Marshal(sig.Tags)
	if err != nil {
		return nil, false, fmt.Errorf("encode tags: %w", err)
	}
	now := time.Now().UTC()

	// Insert-if-absent keyed on hash. The loser of a create race lands on the
	// increment path; the occurrence count is never lost or double-counted.
	query := `
		INSERT INTO signatures (
			id, hash, anomaly_type, severity, status, pattern, endpoint_pattern,
			error_class, rule_name, occurrence_count, first_seen, last_seen,
			tags, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			occurrence_count = occurrence_count + 1,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		sig.ID,
		sig.Hash,
		sig.AnomalyType,
		sig.Severity,
		models.SignatureStatusActive,
		sig.Pattern,
		sig.EndpointPattern,
		sig.ErrorClass,
		sig.RuleName,
		sig.FirstSeen,
		sig.LastSeen,
		string(tags),
		now,
		now,
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert signature: %w", err)
	}

	stored, err := r.GetSignatureByHash(ctx, sig.Hash)
	if err != nil {
		return nil, false, err
	}
	created := stored.ID == sig.ID
	if r.sigCache != nil {
		r.sigCache.Remove(stored.ID)
	}
	return stored, created, nil
}

func (r *SQLiteRepository) GetSignature(ctx context.Context, id string) (*models.Signature, error) {
	if r.sigCache != nil {
		if sig, ok := r.sigCache.Get(id); ok {
			return sig, nil
		}
	}
	var sig models.Signature
	err := r.db.GetContext(ctx, &sig, `SELECT * FROM signatures WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signature %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get signature %s: %w", id, err)
	}
	decodeSignatureTags(&sig)
	if r.sigCache != nil {
		r.sigCache.Add(id, &sig)
	}
	return &sig, nil
}

func (r *SQLiteRepository) GetSignatureByHash(ctx context.Context, hash string) (*models.Signature, error) {
	var sig models.Signature
	err := r.db.GetContext(ctx, &sig, `SELECT * FROM signatures WHERE hash = ?`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("signature hash %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get signature by hash: %w", err)
	}
	decodeSignatureTags(&sig)
	return &sig, nil
}

func (r *SQLiteRepository) ListSignatures(ctx context.Context, status, severity string, limit int) ([]*models.Signature, error) {
	query := `SELECT * FROM signatures WHERE 1=1`
	args := []any{}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if severity != "" {
		query += ` AND severity = ?`
		args = append(args, severity)
	}
	query += ` ORDER BY last_seen DESC LIMIT ?`
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	var sigs []*models.Signature
	if err := r.db.SelectContext(ctx, &sigs, query, args...); err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	for _, sig := range sigs {
		decodeSignatureTags(sig)
	}
	return sigs, nil
}

func (r *SQLiteRepository) UpdateSignatureStatus(ctx context.Context, id string, status models.SignatureStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE signatures SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update signature status %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected update signature status %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("signature %s: %w", id, ErrNotFound)
	}
	if r.sigCache != nil {
		r.sigCache.Remove(id)
	}
	return nil
}

func (r *SQLiteRepository) UpdateSignatureReliability(ctx context.Context, id string, mttrSeconds, mtbfHours *float64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE signatures SET mttr_seconds = ?, mtbf_hours = ?, updated_at = ? WHERE id = ?`,
		mttrSeconds, mtbfHours, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update signature reliability %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected update signature reliability %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("signature %s: %w", id, ErrNotFound)
	}
	if r.sigCache != nil {
		r.sigCache.Remove(id)
	}
	return nil
}

func decodeSignatureTags(sig *models.Signature) {
	if sig.TagsRaw != "" {
		_ = json.Unmarshal([]byte(sig.TagsRaw), &sig.Tags)
	}
}

// OccurrenceRepository implementation

func (r *SQLiteRepository) CreateOccurrence(ctx context.Context, occ *models.Occurrence) error {
	if occ.ID == "" {
		occ.ID = uuid.New().String()
	}
	if occ.CreatedAt.IsZero() {
		occ.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO occurrences (
			id, signature_id, endpoint, error_message, exception_class,
			stack_hash, http_status_code, latency_ms, severity, payload, status,
			client_app_version, client_os_version, client_device_model,
			correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		occ.ID,
		occ.SignatureID,
		occ.Endpoint,
		occ.ErrorMessage,
		occ.ExceptionClass,
		occ.StackHash,
		occ.HTTPStatusCode,
		occ.LatencyMS,
		occ.Severity,
		occ.Payload,
		models.OccurrenceStatusNew,
		occ.ClientAppVersion,
		occ.ClientOSVersion,
		occ.ClientDevice,
		occ.CorrelationID,
		occ.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create occurrence: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetOccurrence(ctx context.Context, id string) (*models.Occurrence, error) {
	var occ models.Occurrence
	err := r.db.GetContext(ctx, &occ, `SELECT * FROM occurrences WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get occurrence %s: %w", id, err)
	}
	return &occ, nil
}

func (r *SQLiteRepository) ListOccurrences(ctx context.Context, signatureID string, limit int) ([]*models.Occurrence, error) {
	return r.RecentOccurrences(ctx, signatureID, limit)
}

func (r *SQLiteRepository) RecentOccurrences(ctx context.Context, signatureID string, limit int) ([]*models.Occurrence, error) {
	if limit <= 0 {
		limit = 50
	}
	var occs []*models.Occurrence
	query := `
		SELECT * FROM occurrences
		WHERE signature_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &occs, query, signatureID, limit); err != nil {
		return nil, fmt.Errorf("list occurrences for signature %s: %w", signatureID, err)
	}
	return occs, nil
}

func (r *SQLiteRepository) ResolveOccurrence(ctx context.Context, id string, status models.OccurrenceStatus, resolvedBy, note string) error {
	now := time.Now().UTC()
	var resolvedAt *time.Time
	if status == models.OccurrenceStatusResolved {
		resolvedAt = &now
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE occurrences SET status = ?, resolved_at = ?, resolved_by = ?, resolution_note = ? WHERE id = ?`,
		status, resolvedAt, resolvedBy, note, id)
	if err != nil {
		return fmt.Errorf("resolve occurrence %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected resolve occurrence %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("occurrence %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MeanResolutionSeconds(ctx context.Context, signatureID string) (*float64, error) {
	var mean sql.NullFloat64
	query := `
		SELECT AVG(strftime('%s', resolved_at) - strftime('%s', created_at))
		FROM occurrences
		WHERE signature_id = ? AND status = 'resolved' AND resolved_at IS NOT NULL
	`
	if err := r.db.GetContext(ctx, &mean, query, signatureID); err != nil {
		return nil, fmt.Errorf("mean resolution for signature %s: %w", signatureID, err)
	}
	if !mean.Valid {
		return nil, nil
	}
	return &mean.Float64, nil
}

func (r *SQLiteRepository) VersionBreakdown(ctx context.Context, signatureID string) ([]*models.VersionCount, error) {
	var counts []*models.VersionCount
	query := `
		SELECT client_app_version, COUNT(*) AS count
		FROM occurrences
		WHERE signature_id = ? AND client_app_version != ''
		GROUP BY client_app_version
		ORDER BY count DESC
	`
	if err := r.db.SelectContext(ctx, &counts, query, signatureID); err != nil {
		return nil, fmt.Errorf("version breakdown for signature %s: %w", signatureID, err)
	}
	return counts, nil
}

// RecurrenceRepository implementation

func (r *SQLiteRepository) SaveRecurrence(ctx context.Context, tracker *models.RecurrenceTracker) error {
	query := `
		INSERT INTO recurrence_trackers (
			signature_id, last_occurrence_at, recurrence_count,
			typical_interval_hours, severity_trend, fixes_attempted,
			successful_fixes, fix_success_rate, requires_attention,
			alert_threshold_exceeded, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(signature_id) DO UPDATE SET
			last_occurrence_at = excluded.last_occurrence_at,
			recurrence_count = excluded.recurrence_count,
			typical_interval_hours = excluded.typical_interval_hours,
			severity_trend = excluded.severity_trend,
			fixes_attempted = excluded.fixes_attempted,
			successful_fixes = excluded.successful_fixes,
			fix_success_rate = excluded.fix_success_rate,
			requires_attention = excluded.requires_attention,
			alert_threshold_exceeded = excluded.alert_threshold_exceeded,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		tracker.SignatureID,
		tracker.LastOccurrenceAt,
		tracker.RecurrenceCount,
		tracker.TypicalIntervalHours,
		tracker.SeverityTrend,
		tracker.FixesAttempted,
		tracker.SuccessfulFixes,
		tracker.FixSuccessRate,
		tracker.RequiresAttention,
		tracker.AlertThresholdExceeded,
		tracker.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save recurrence for signature %s: %w", tracker.SignatureID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetRecurrence(ctx context.Context, signatureID string) (*models.RecurrenceTracker, error) {
	var tracker models.RecurrenceTracker
	err := r.db.GetContext(ctx, &tracker, `SELECT * FROM recurrence_trackers WHERE signature_id = ?`, signatureID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recurrence for signature %s: %w", signatureID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get recurrence for signature %s: %w", signatureID, err)
	}
	return &tracker, nil
}
