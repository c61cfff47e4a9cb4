package storage

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

func TestNewS3Service_RequiresBucket(t *testing.T) {
	_, err := NewS3Service(context.Background(), S3Config{})
	assert.ErrorContains(t, err, "S3_BUCKET")
}

func TestArchive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := minio.Run(ctx,
		"minio/minio:RELEASE.2024-10-29T16-01-48Z",
		minio.WithUsername("minioadmin"),
		minio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	archive, err := NewS3Service(ctx, S3Config{
		Bucket:    "resotrack-test",
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	require.NoError(t, archive.EnsureBucket(ctx))
	require.NoError(t, archive.EnsureBucket(ctx), "second call finds the bucket")

	body := []byte("Time (s),Frequency TM010/Hz\n0,2500700000\n")
	key := "recordings/cooldown_test.csv"
	require.NoError(t, archive.Upload(ctx, key, "text/csv", body))

	got, err := archive.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	url, err := archive.GenerateDownloadURL(ctx, key)
	require.NoError(t, err)
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	fetched, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, fetched)

	require.NoError(t, archive.Delete(ctx, key))
	_, err = archive.Download(ctx, key)
	assert.Error(t, err)
}
