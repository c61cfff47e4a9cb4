// Package recording persists accepted samples as named recordings and
// exports finished recordings as CSV archives.
package recording

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/resotrack/internal/repository"
	"github.com/RMahshie/resotrack/internal/storage"
	"github.com/RMahshie/resotrack/pkg/models"
)

var (
	ErrRecordingActive = errors.New("a recording is already active")
	ErrNoRecording     = errors.New("no active recording")
)

// TimeHeader is the first column of every recording
const TimeHeader = "Time (s)"

// Service is the recording capability used by the acquisition loop and the API
type Service interface {
	Start(ctx context.Context, name string, headers []string) (*models.Recording, error)
	Stop(ctx context.Context) (*models.Recording, error)
	Observe(ctx context.Context, values []float64) error
	Active() *models.Recording
	Get(ctx context.Context, id uuid.UUID) (*models.Recording, string, error)
}

var _ Service = (*Recorder)(nil)

// Recorder owns the single active recording
type Recorder struct {
	repo        repository.RecordingRepository
	archive     storage.ArchiveService
	maxDuration time.Duration
	now         func() time.Time

	mu     sync.Mutex
	active *models.Recording
}

// NewRecorder creates a recorder. archive may be nil to skip CSV export;
// maxDuration <= 0 disables the automatic stop.
func NewRecorder(repo repository.RecordingRepository, archive storage.ArchiveService, maxDuration time.Duration) *Recorder {
	return &Recorder{
		repo:        repo,
		archive:     archive,
		maxDuration: maxDuration,
		now:         time.Now,
	}
}

// Start opens a new recording with the given sample headers
func (r *Recorder) Start(ctx context.Context, name string, headers []string) (*models.Recording, error) {
	if name == "" {
		return nil, fmt.Errorf("recording name is required")
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("no sample headers available")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrRecordingActive
	}

	rec := &models.Recording{
		ID:        uuid.New().String(),
		Name:      name,
		Headers:   append([]string{TimeHeader}, headers...),
		StartedAt: r.now(),
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	log.Info().Str("recordingID", rec.ID).Str("name", name).Msg("Recording started")
	r.active = rec
	copied := *rec
	return &copied, nil
}

// Active returns a copy of the active recording, nil if none
func (r *Recorder) Active() *models.Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	copied := *r.active
	return &copied
}

// Observe appends one formatted sample to the active recording. The row
// that crosses the configured duration is the last one; the recording is
// stopped right after it.
func (r *Recorder) Observe(ctx context.Context, values []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return nil
	}

	now := r.now()
	elapsed := now.Sub(r.active.StartedAt)
	row := &models.RecordedRow{
		RecordingID:    r.active.ID,
		ElapsedSeconds: elapsed.Seconds(),
		Values:         append([]float64(nil), values...),
		CreatedAt:      now,
	}
	if err := r.repo.AppendRow(ctx, row); err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}

	if r.maxDuration > 0 && elapsed > r.maxDuration {
		log.Info().Str("recordingID", r.active.ID).Dur("duration", r.maxDuration).Msg("Recording duration reached")
		_, err := r.stopLocked(ctx)
		return err
	}
	return nil
}

// Stop closes the active recording and exports it
func (r *Recorder) Stop(ctx context.Context) (*models.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx)
}

func (r *Recorder) stopLocked(ctx context.Context) (*models.Recording, error) {
	if r.active == nil {
		return nil, ErrNoRecording
	}
	rec := r.active
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, err
	}

	if err := r.repo.Stop(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to stop recording: %w", err)
	}
	r.active = nil
	stopped := r.now()
	rec.StoppedAt = &stopped
	log.Info().Str("recordingID", rec.ID).Msg("Recording stopped")

	if r.archive != nil {
		key, err := r.export(ctx, rec)
		if err != nil {
			// Rows remain in the database
			log.Error().Err(err).Str("recordingID", rec.ID).Msg("Failed to export recording")
		} else {
			rec.ArchiveKey = &key
		}
	}
	return rec, nil
}

// Get returns a stored recording and, when archived, a download URL
func (r *Recorder) Get(ctx context.Context, id uuid.UUID) (*models.Recording, string, error) {
	rec, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if rec.ArchiveKey == nil || r.archive == nil {
		return rec, "", nil
	}
	url, err := r.archive.GenerateDownloadURL(ctx, *rec.ArchiveKey)
	if err != nil {
		return nil, "", err
	}
	return rec, url, nil
}

// ArchiveKey is the object key a recording is exported to
func ArchiveKey(rec *models.Recording) string {
	return fmt.Sprintf("recordings/%s_%s.csv", rec.Name, rec.ID)
}

func (r *Recorder) export(ctx context.Context, rec *models.Recording) (string, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return "", err
	}
	rows, err := r.repo.ListRows(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to list rows: %w", err)
	}
	body, err := EncodeCSV(rec.Headers, rows)
	if err != nil {
		return "", err
	}

	key := ArchiveKey(rec)
	if err := r.archive.Upload(ctx, key, "text/csv", body); err != nil {
		return "", err
	}
	if err := r.repo.SetArchiveKey(ctx, id, key); err != nil {
		return "", fmt.Errorf("failed to store archive key: %w", err)
	}
	log.Info().Str("recordingID", rec.ID).Str("key", key).Int("rows", len(rows)).Msg("Recording exported")
	return key, nil
}

// EncodeCSV renders a recording as CSV. Absent values are left empty.
func EncodeCSV(headers []string, rows []*models.RecordedRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(headers); err != nil {
		return nil, err
	}

	record := make([]string, 0, len(headers))
	for _, row := range rows {
		record = append(record[:0], formatCell(row.ElapsedSeconds))
		for _, v := range row.Values {
			record = append(record, formatCell(v))
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
