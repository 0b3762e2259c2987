package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/patric-chuzhbe/vidlib/internal/db/storagetest"
	"github.com/patric-chuzhbe/vidlib/internal/models"
)

func Test(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI is not set")
	}

	db, err := New(context.Background(), uri, "vidlib_test_"+uuid.NewString()[:8], 5*time.Second)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Drop(context.Background()))
		require.NoError(t, db.Close())
	}()

	storagetest.Run(t, db)
}

func TestNormalizeID(t *testing.T) {
	oid := primitive.NewObjectID()
	video := models.Video{"_id": oid, "title": "t"}

	normalizeID(video)

	assert.Equal(t, oid.Hex(), video.ID())
}

func TestUpsertModels(t *testing.T) {
	writes := upsertModels([]models.Video{{"_id": "v1"}, {"_id": "v2"}}, models.Video.ID)
	assert.Len(t, writes, 2)
}
