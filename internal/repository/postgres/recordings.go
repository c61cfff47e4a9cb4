package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/RMahshie/resotrack/internal/repository"
	"github.com/RMahshie/resotrack/pkg/models"
)

// PostgresRecordingRepository implements RecordingRepository for PostgreSQL
type PostgresRecordingRepository struct {
	db *sql.DB
}

// NewPostgresRecordingRepository creates a new PostgreSQL recording repository
func NewPostgresRecordingRepository(db *sql.DB) repository.RecordingRepository {
	return &PostgresRecordingRepository{db: db}
}

// Create inserts a new recording record
func (r *PostgresRecordingRepository) Create(ctx context.Context, recording *models.Recording) error {
	query := `
		INSERT INTO recordings (id, name, headers, started_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		recording.ID,
		recording.Name,
		pq.StringArray(recording.Headers),
		recording.StartedAt)

	return err
}

// GetByID retrieves a recording by ID
func (r *PostgresRecordingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	query := `
		SELECT id, name, headers, started_at, stopped_at, archive_key
		FROM recordings
		WHERE id = $1`

	var recording models.Recording
	var headers pq.StringArray
	var stoppedAt sql.NullTime
	var archiveKey sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&recording.ID,
		&recording.Name,
		&headers,
		&recording.StartedAt,
		&stoppedAt,
		&archiveKey)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	recording.Headers = []string(headers)
	if stoppedAt.Valid {
		recording.StoppedAt = &stoppedAt.Time
	}
	if archiveKey.Valid {
		recording.ArchiveKey = &archiveKey.String
	}

	return &recording, nil
}

// AppendRow stores one sample row. NaN marks disabled segment slots.
func (r *PostgresRecordingRepository) AppendRow(ctx context.Context, row *models.RecordedRow) error {
	query := `
		INSERT INTO recording_samples (recording_id, elapsed_seconds, "values", created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query,
		row.RecordingID,
		row.ElapsedSeconds,
		pq.Float64Array(row.Values),
		row.CreatedAt)

	return err
}

// ListRows retrieves every row of a recording in insertion order
func (r *PostgresRecordingRepository) ListRows(ctx context.Context, id uuid.UUID) ([]*models.RecordedRow, error) {
	query := `
		SELECT recording_id, elapsed_seconds, "values", created_at
		FROM recording_samples
		WHERE recording_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.RecordedRow
	for rows.Next() {
		var row models.RecordedRow
		var values pq.Float64Array

		if err := rows.Scan(&row.RecordingID, &row.ElapsedSeconds, &values, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.Values = []float64(values)
		out = append(out, &row)
	}

	return out, rows.Err()
}

// Stop marks a recording as finished. Stopping twice keeps the first time.
func (r *PostgresRecordingRepository) Stop(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE recordings
		SET stopped_at = COALESCE(stopped_at, NOW())
		WHERE id = $1`

	return r.execOne(ctx, query, id)
}

// SetArchiveKey records where the exported archive was stored
func (r *PostgresRecordingRepository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	query := `
		UPDATE recordings
		SET archive_key = $1
		WHERE id = $2`

	return r.execOne(ctx, query, key, id)
}

func (r *PostgresRecordingRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
