package recording

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/resotrack/pkg/models"
)

// MockRecordingRepository implements repository.RecordingRepository for testing
type MockRecordingRepository struct {
	mock.Mock
}

func (m *MockRecordingRepository) Create(ctx context.Context, recording *models.Recording) error {
	args := m.Called(ctx, recording)
	return args.Error(0)
}

func (m *MockRecordingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Recording), args.Error(1)
}

func (m *MockRecordingRepository) AppendRow(ctx context.Context, row *models.RecordedRow) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockRecordingRepository) ListRows(ctx context.Context, id uuid.UUID) ([]*models.RecordedRow, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]*models.RecordedRow), args.Error(1)
}

func (m *MockRecordingRepository) Stop(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRecordingRepository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	args := m.Called(ctx, id, key)
	return args.Error(0)
}

// MockArchiveService implements storage.ArchiveService for testing
type MockArchiveService struct {
	mock.Mock
}

func (m *MockArchiveService) EnsureBucket(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockArchiveService) Upload(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

func (m *MockArchiveService) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockArchiveService) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockArchiveService) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

// fakeClock advances by step on every call
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

var headers = []string{"Frequency TM010/Hz", "Q factor TM010", "Insertion loss TM010/dB"}

func TestRecorder_StartObserveStop(t *testing.T) {
	ctx := context.Background()
	repo := &MockRecordingRepository{}
	archive := &MockArchiveService{}
	rec := NewRecorder(repo, archive, 0)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), step: 500 * time.Millisecond}
	rec.now = clock.now

	repo.On("Create", ctx, mock.MatchedBy(func(r *models.Recording) bool {
		return r.Name == "cooldown" && r.Headers[0] == TimeHeader && len(r.Headers) == 4
	})).Return(nil)
	repo.On("AppendRow", ctx, mock.AnythingOfType("*models.RecordedRow")).Return(nil)
	repo.On("Stop", ctx, mock.AnythingOfType("uuid.UUID")).Return(nil)

	started, err := rec.Start(ctx, "cooldown", headers)
	require.NoError(t, err)
	assert.True(t, started.Active())
	require.NotNil(t, rec.Active())

	_, err = rec.Start(ctx, "again", headers)
	assert.ErrorIs(t, err, ErrRecordingActive)

	require.NoError(t, rec.Observe(ctx, []float64{2.5007e9, 25007, -3}))
	require.NoError(t, rec.Observe(ctx, []float64{2.5008e9, 25008, -3}))

	var rows []*models.RecordedRow
	for _, call := range repo.Calls {
		if call.Method == "AppendRow" {
			rows = append(rows, call.Arguments.Get(1).(*models.RecordedRow))
		}
	}
	require.Len(t, rows, 2)
	assert.Equal(t, 0.5, rows[0].ElapsedSeconds)
	assert.Equal(t, 1.0, rows[1].ElapsedSeconds)
	assert.Equal(t, started.ID, rows[0].RecordingID)

	id := uuid.MustParse(started.ID)
	stored := []*models.RecordedRow{
		{ElapsedSeconds: 0.5, Values: []float64{2.5007e9, math.NaN(), -3}},
	}
	key := "recordings/cooldown_" + started.ID + ".csv"
	repo.On("ListRows", ctx, id).Return(stored, nil)
	archive.On("Upload", ctx, key, "text/csv", mock.MatchedBy(func(body []byte) bool {
		return string(body) == "Time (s),Frequency TM010/Hz,Q factor TM010,Insertion loss TM010/dB\n0.5,2500700000,,-3\n"
	})).Return(nil)
	repo.On("SetArchiveKey", ctx, id, key).Return(nil)

	stopped, err := rec.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, stopped.Active())
	require.NotNil(t, stopped.ArchiveKey)
	assert.Equal(t, key, *stopped.ArchiveKey)
	assert.Nil(t, rec.Active())

	_, err = rec.Stop(ctx)
	assert.ErrorIs(t, err, ErrNoRecording)

	repo.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestRecorder_DurationLimit(t *testing.T) {
	ctx := context.Background()
	repo := &MockRecordingRepository{}
	rec := NewRecorder(repo, nil, time.Second)
	clock := &fakeClock{t: time.Unix(0, 0), step: 600 * time.Millisecond}
	rec.now = clock.now

	repo.On("Create", ctx, mock.Anything).Return(nil)
	repo.On("AppendRow", ctx, mock.Anything).Return(nil).Twice()
	repo.On("Stop", ctx, mock.Anything).Return(nil).Once()

	_, err := rec.Start(ctx, "short", headers)
	require.NoError(t, err)

	// 0.6 s: kept
	require.NoError(t, rec.Observe(ctx, []float64{1, 2, 3}))
	assert.NotNil(t, rec.Active())

	// 1.2 s: past the limit, the row is kept and the recording stops
	require.NoError(t, rec.Observe(ctx, []float64{4, 5, 6}))
	assert.Nil(t, rec.Active())

	// Nothing active, nothing persisted
	require.NoError(t, rec.Observe(ctx, []float64{7, 8, 9}))

	var last *models.RecordedRow
	for _, call := range repo.Calls {
		if call.Method == "AppendRow" {
			last = call.Arguments.Get(1).(*models.RecordedRow)
		}
	}
	require.NotNil(t, last)
	assert.InDelta(t, 1.2, last.ElapsedSeconds, 1e-9)
	assert.Equal(t, []float64{4, 5, 6}, last.Values)

	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "AppendRow", 2)
}

func TestRecorder_StartValidation(t *testing.T) {
	rec := NewRecorder(&MockRecordingRepository{}, nil, 0)

	_, err := rec.Start(context.Background(), "", headers)
	assert.Error(t, err)

	_, err = rec.Start(context.Background(), "run", nil)
	assert.Error(t, err)
}

func TestRecorder_ExportFailureStillStops(t *testing.T) {
	ctx := context.Background()
	repo := &MockRecordingRepository{}
	archive := &MockArchiveService{}
	rec := NewRecorder(repo, archive, 0)

	repo.On("Create", ctx, mock.Anything).Return(nil)
	repo.On("Stop", ctx, mock.Anything).Return(nil)
	repo.On("ListRows", ctx, mock.Anything).Return([]*models.RecordedRow{}, nil)
	archive.On("Upload", ctx, mock.Anything, "text/csv", mock.Anything).Return(assert.AnError)

	_, err := rec.Start(ctx, "run", headers)
	require.NoError(t, err)

	stopped, err := rec.Stop(ctx)
	require.NoError(t, err)
	assert.Nil(t, stopped.ArchiveKey)
	assert.Nil(t, rec.Active())
	repo.AssertNotCalled(t, "SetArchiveKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecorder_Get(t *testing.T) {
	ctx := context.Background()
	repo := &MockRecordingRepository{}
	archive := &MockArchiveService{}
	rec := NewRecorder(repo, archive, 0)

	archived := uuid.New()
	key := "recordings/a_" + archived.String() + ".csv"
	repo.On("GetByID", ctx, archived).Return(&models.Recording{ID: archived.String(), ArchiveKey: &key}, nil)
	archive.On("GenerateDownloadURL", ctx, key).Return("https://archive.test/a.csv", nil)

	plain := uuid.New()
	repo.On("GetByID", ctx, plain).Return(&models.Recording{ID: plain.String()}, nil)

	got, url, err := rec.Get(ctx, archived)
	require.NoError(t, err)
	assert.Equal(t, archived.String(), got.ID)
	assert.Equal(t, "https://archive.test/a.csv", url)

	_, url, err = rec.Get(ctx, plain)
	require.NoError(t, err)
	assert.Empty(t, url)

	archive.AssertNumberOfCalls(t, "GenerateDownloadURL", 1)
}

func TestEncodeCSV(t *testing.T) {
	body, err := EncodeCSV([]string{"Time (s)", "Frequency A/Hz"}, []*models.RecordedRow{
		{ElapsedSeconds: 0, Values: []float64{1.5e9}},
		{ElapsedSeconds: 0.25, Values: []float64{math.NaN()}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Time (s),Frequency A/Hz\n0,1500000000\n0.25,\n", string(body))
}
