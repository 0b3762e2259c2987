package postgresdb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/vidlib/internal/db/storagetest"
	"github.com/patric-chuzhbe/vidlib/internal/models"
)

func newTestDB(t *testing.T) *PostgresDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN is not set")
	}

	db, err := New(context.Background(), dsn, 5*time.Second, WithDBPreReset(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func Test(t *testing.T) {
	storagetest.Run(t, newTestDB(t))
}

func TestUnknownSequenceIsRejected(t *testing.T) {
	db := newTestDB(t)

	_, _, err := db.PrependToSequence(context.Background(), "u1", models.Sequence("passwords"), storagetest.Video("v1"))
	assert.ErrorIs(t, err, models.ErrUnknownSequence)
}
