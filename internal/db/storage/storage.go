// Package storage declares the persistence port shared by every backend.
//
// All user mutations are keyed by user id and applied atomically by the
// backend, so concurrent requests on the same sequence never lose updates.
package storage

import (
	"context"

	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

type Storage interface {
	ListVideos(ctx context.Context) ([]models.Video, error)

	ListCategories(ctx context.Context) ([]models.Category, error)

	// SeedCatalog upserts the given videos and categories by id.
	SeedCatalog(ctx context.Context, catalog models.Catalog) error

	// CreateUser fails with models.ErrUserAlreadyExists on a taken email.
	CreateUser(ctx context.Context, usr *user.User) error

	GetUserByToken(ctx context.Context, token string) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string) (*user.User, error)

	CountUsers(ctx context.Context) (int64, error)

	// PrependToSequence puts video at the front of the sequence. For unique
	// sequences an already present video is left alone and added is false.
	PrependToSequence(
		ctx context.Context,
		userID string,
		seq models.Sequence,
		video models.Video,
	) (added bool, videos []models.Video, err error)

	// PullFromSequence removes every entry with the given id. Removing an
	// absent id is not an error.
	PullFromSequence(
		ctx context.Context,
		userID string,
		seq models.Sequence,
		videoID string,
	) ([]models.Video, error)

	ClearSequence(ctx context.Context, userID string, seq models.Sequence) error

	// InsertPlaylist puts playlist at the front of the user's playlists.
	InsertPlaylist(ctx context.Context, userID string, playlist models.Playlist) ([]models.Playlist, error)

	DeletePlaylist(ctx context.Context, userID, playlistID string) ([]models.Playlist, error)

	AddPlaylistVideo(
		ctx context.Context,
		userID string,
		playlistID string,
		video models.Video,
	) (models.Playlist, error)

	RemovePlaylistVideo(
		ctx context.Context,
		userID string,
		playlistID string,
		videoID string,
	) (models.Playlist, error)

	Ping(ctx context.Context) error

	Close() error
}
