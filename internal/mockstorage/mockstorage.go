// Package mockstorage provides a testify-based mock of the storage port for
// service and handler tests.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

// StorageMock implements storage.Storage on top of testify's mock.Mock.
type StorageMock struct {
	mock.Mock

	// OnCountUsers, when set, replaces the generic mock handler of CountUsers.
	OnCountUsers func(ctx context.Context) (int64, error)
}

func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *StorageMock) ListVideos(ctx context.Context) ([]models.Video, error) {
	args := m.Called(ctx)
	videos, _ := args.Get(0).([]models.Video)
	return videos, args.Error(1)
}

func (m *StorageMock) ListCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]models.Category)
	return categories, args.Error(1)
}

func (m *StorageMock) SeedCatalog(ctx context.Context, catalog models.Catalog) error {
	args := m.Called(ctx, catalog)
	return args.Error(0)
}

func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

func (m *StorageMock) GetUserByToken(ctx context.Context, token string) (*user.User, error) {
	args := m.Called(ctx, token)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) CountUsers(ctx context.Context) (int64, error) {
	if m.OnCountUsers != nil {
		return m.OnCountUsers(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) PrependToSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	video models.Video,
) (bool, []models.Video, error) {
	args := m.Called(ctx, userID, seq, video)
	videos, _ := args.Get(1).([]models.Video)
	return args.Bool(0), videos, args.Error(2)
}

func (m *StorageMock) PullFromSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	videoID string,
) ([]models.Video, error) {
	args := m.Called(ctx, userID, seq, videoID)
	videos, _ := args.Get(0).([]models.Video)
	return videos, args.Error(1)
}

func (m *StorageMock) ClearSequence(ctx context.Context, userID string, seq models.Sequence) error {
	args := m.Called(ctx, userID, seq)
	return args.Error(0)
}

func (m *StorageMock) InsertPlaylist(ctx context.Context, userID string, playlist models.Playlist) ([]models.Playlist, error) {
	args := m.Called(ctx, userID, playlist)
	playlists, _ := args.Get(0).([]models.Playlist)
	return playlists, args.Error(1)
}

func (m *StorageMock) DeletePlaylist(ctx context.Context, userID, playlistID string) ([]models.Playlist, error) {
	args := m.Called(ctx, userID, playlistID)
	playlists, _ := args.Get(0).([]models.Playlist)
	return playlists, args.Error(1)
}

func (m *StorageMock) AddPlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	video models.Video,
) (models.Playlist, error) {
	args := m.Called(ctx, userID, playlistID, video)
	playlist, _ := args.Get(0).(models.Playlist)
	return playlist, args.Error(1)
}

func (m *StorageMock) RemovePlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	videoID string,
) (models.Playlist, error) {
	args := m.Called(ctx, userID, playlistID, videoID)
	playlist, _ := args.Get(0).(models.Playlist)
	return playlist, args.Error(1)
}
