package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/vidlib/internal/config"
	"github.com/patric-chuzhbe/vidlib/internal/models"
)

func TestGetAvailableStorageType(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		expected int
	}{
		{"mongo wins", config.Config{MongoURI: "mongodb://x", DatabaseDSN: "dsn", DBFileName: "f"}, models.StorageTypeMongo},
		{"postgres", config.Config{DatabaseDSN: "dsn", DBFileName: "f"}, models.StorageTypePostgresql},
		{"file", config.Config{DBFileName: "f"}, models.StorageTypeFile},
		{"memory", config.Config{}, models.StorageTypeMemory},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, getAvailableStorageType(&test.cfg))
		})
	}
}

func TestRefreshInterval(t *testing.T) {
	assert.Equal(t, 30*time.Second, refreshInterval(time.Minute))
	assert.Equal(t, time.Second, refreshInterval(time.Millisecond))
}

func TestNewSeedsTheCatalog(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(seedPath, []byte(`{
		"videos": [{"_id": "v1", "title": "seeded"}],
		"categories": [{"_id": "c1"}]
	}`), 0644))

	t.Setenv("GRPC_ADDRESS", "")
	t.Setenv("FILE_STORAGE_PATH", filepath.Join(dir, "db.json"))
	t.Setenv("CATALOG_SEED_PATH", seedPath)
	t.Setenv("LOG_LEVEL", "debug")

	theApp, err := New(config.WithDisableFlagsParsing(true))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, theApp.db.Close())
		theApp.Close()
	}()
	assert.Nil(t, theApp.grpcServer)

	videos, err := theApp.catalog.Videos(context.Background())
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "seeded", videos[0]["title"])

	recorder := httptest.NewRecorder()
	theApp.httpHandler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/video/v1", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestNewFailsOnMissingSeed(t *testing.T) {
	t.Setenv("GRPC_ADDRESS", "")
	t.Setenv("CATALOG_SEED_PATH", filepath.Join(t.TempDir(), "missing.json"))

	_, err := New(config.WithDisableFlagsParsing(true))
	assert.Error(t, err)
}
