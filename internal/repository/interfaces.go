package repository

import (
	"context"
	"errors"

	"github.com/RMahshie/resotrack/pkg/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a recording does not exist
var ErrNotFound = errors.New("recording not found")

// RecordingRepository defines the interface for recording data operations
type RecordingRepository interface {
	Create(ctx context.Context, recording *models.Recording) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	AppendRow(ctx context.Context, row *models.RecordedRow) error
	ListRows(ctx context.Context, id uuid.UUID) ([]*models.RecordedRow, error)
	Stop(ctx context.Context, id uuid.UUID) error
	SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error
}
