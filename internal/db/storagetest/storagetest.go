// Package storagetest is a behavioural test suite every storage backend must
// pass. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/vidlib/internal/db/storage"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

// Video builds a catalog video with the given id.
func Video(id string) models.Video {
	return models.Video{
		"_id":         id,
		"title":       "Video " + id,
		"creator":     "someone",
		"description": "about " + id,
	}
}

// NewUser builds a user with a unique email and token.
func NewUser() *user.User {
	id := uuid.NewString()
	return user.New(id, id+"@example.com", "token-"+id, "hash", map[string]interface{}{"firstName": "Test"})
}

func ids(videos []models.Video) []string {
	result := make([]string, 0, len(videos))
	for _, v := range videos {
		result = append(result, v.ID())
	}
	return result
}

func playlistIDs(playlists []models.Playlist) []string {
	result := make([]string, 0, len(playlists))
	for _, p := range playlists {
		result = append(result, p.ID)
	}
	return result
}

// Run exercises theStorage. It must be empty of the users it creates, which
// NewUser guarantees by generating fresh identities.
func Run(t *testing.T, theStorage storage.Storage) {
	ctx := context.Background()

	t.Run("catalog seeding upserts by id", func(t *testing.T) {
		suffix := uuid.NewString()
		v1, v2 := "v1-"+suffix, "v2-"+suffix
		err := theStorage.SeedCatalog(ctx, models.Catalog{
			Videos:     []models.Video{Video(v1), Video(v2)},
			Categories: []models.Category{{"_id": "c-" + suffix, "categoryName": "music"}},
		})
		require.NoError(t, err)

		updated := Video(v1)
		updated["title"] = "renamed"
		require.NoError(t, theStorage.SeedCatalog(ctx, models.Catalog{Videos: []models.Video{updated}}))

		videos, err := theStorage.ListVideos(ctx)
		require.NoError(t, err)
		found := 0
		for _, v := range videos {
			if v.ID() == v1 {
				found++
				assert.Equal(t, "renamed", v["title"])
			}
		}
		assert.Equal(t, 1, found)
		assert.Contains(t, ids(videos), v2)

		categories, err := theStorage.ListCategories(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, categories)
	})

	t.Run("users are unique by email", func(t *testing.T) {
		usr := NewUser()
		require.NoError(t, theStorage.CreateUser(ctx, usr))

		clash := NewUser()
		clash.Email = usr.Email
		assert.ErrorIs(t, theStorage.CreateUser(ctx, clash), models.ErrUserAlreadyExists)

		byToken, err := theStorage.GetUserByToken(ctx, usr.Token)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, byToken.ID)
		assert.Equal(t, "hash", byToken.PasswordHash)
		assert.Equal(t, "Test", byToken.Profile["firstName"])
		assert.NotNil(t, byToken.Likes)

		byEmail, err := theStorage.GetUserByEmail(ctx, usr.Email)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, byEmail.ID)

		_, err = theStorage.GetUserByToken(ctx, "no such token")
		assert.ErrorIs(t, err, models.ErrUserNotFound)
		_, err = theStorage.GetUserByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, models.ErrUserNotFound)

		count, err := theStorage.CountUsers(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, int64(1))
	})

	t.Run("likes are deduplicated", func(t *testing.T) {
		usr := NewUser()
		require.NoError(t, theStorage.CreateUser(ctx, usr))

		added, videos, err := theStorage.PrependToSequence(ctx, usr.ID, models.SequenceLikes, Video("v1"))
		require.NoError(t, err)
		assert.True(t, added)
		assert.Equal(t, []string{"v1"}, ids(videos))

		added, videos, err = theStorage.PrependToSequence(ctx, usr.ID, models.SequenceLikes, Video("v1"))
		require.NoError(t, err)
		assert.False(t, added)
		assert.Equal(t, []string{"v1"}, ids(videos))

		_, videos, err = theStorage.PrependToSequence(ctx, usr.ID, models.SequenceLikes, Video("v2"))
		require.NoError(t, err)
		assert.Equal(t, []string{"v2", "v1"}, ids(videos))

		videos, err = theStorage.PullFromSequence(ctx, usr.ID, models.SequenceLikes, "v1")
		require.NoError(t, err)
		assert.Equal(t, []string{"v2"}, ids(videos))

		videos, err = theStorage.PullFromSequence(ctx, usr.ID, models.SequenceLikes, "absent")
		require.NoError(t, err)
		assert.Equal(t, []string{"v2"}, ids(videos))
	})

	t.Run("history accumulates and clears", func(t *testing.T) {
		usr := NewUser()
		require.NoError(t, theStorage.CreateUser(ctx, usr))

		for _, id := range []string{"v1", "v2", "v1"} {
			added, _, err := theStorage.PrependToSequence(ctx, usr.ID, models.SequenceHistory, Video(id))
			require.NoError(t, err)
			assert.True(t, added)
		}

		stored, err := theStorage.GetUserByToken(ctx, usr.Token)
		require.NoError(t, err)
		assert.Equal(t, []string{"v1", "v2", "v1"}, ids(stored.History))
		assert.Empty(t, stored.Likes)
		assert.Equal(t, "Video v2", stored.History[1]["title"])

		require.NoError(t, theStorage.ClearSequence(ctx, usr.ID, models.SequenceHistory))
		stored, err = theStorage.GetUserByToken(ctx, usr.Token)
		require.NoError(t, err)
		assert.Empty(t, stored.History)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := theStorage.PrependToSequence(ctx, "ghost", models.SequenceWatchLater, Video("v1"))
		assert.ErrorIs(t, err, models.ErrUserNotFound)
		_, err = theStorage.PullFromSequence(ctx, "ghost", models.SequenceWatchLater, "v1")
		assert.ErrorIs(t, err, models.ErrUserNotFound)
		_, err = theStorage.InsertPlaylist(ctx, "ghost", models.Playlist{ID: "p", Title: "t"})
		assert.ErrorIs(t, err, models.ErrUserNotFound)
	})

	t.Run("playlists", func(t *testing.T) {
		usr := NewUser()
		require.NoError(t, theStorage.CreateUser(ctx, usr))

		_, err := theStorage.InsertPlaylist(ctx, usr.ID, models.Playlist{ID: "p1", Title: "first", Videos: []models.Video{}})
		require.NoError(t, err)
		playlists, err := theStorage.InsertPlaylist(ctx, usr.ID, models.Playlist{ID: "p2", Title: "second", Videos: []models.Video{}})
		require.NoError(t, err)
		assert.Equal(t, []string{"p2", "p1"}, playlistIDs(playlists))

		playlist, err := theStorage.AddPlaylistVideo(ctx, usr.ID, "p1", Video("v1"))
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, ids(playlist.Videos))

		playlist, err = theStorage.AddPlaylistVideo(ctx, usr.ID, "p1", Video("v2"))
		require.NoError(t, err)
		assert.Equal(t, []string{"v2", "v1"}, ids(playlist.Videos))

		_, err = theStorage.AddPlaylistVideo(ctx, usr.ID, "p1", Video("v1"))
		assert.ErrorIs(t, err, models.ErrVideoAlreadyInPlaylist)

		_, err = theStorage.AddPlaylistVideo(ctx, usr.ID, "nope", Video("v1"))
		assert.ErrorIs(t, err, models.ErrPlaylistNotFound)

		_, err = theStorage.RemovePlaylistVideo(ctx, usr.ID, "p2", "v1")
		assert.ErrorIs(t, err, models.ErrVideoNotInPlaylist)

		_, err = theStorage.RemovePlaylistVideo(ctx, usr.ID, "nope", "v1")
		assert.ErrorIs(t, err, models.ErrPlaylistNotFound)

		playlist, err = theStorage.RemovePlaylistVideo(ctx, usr.ID, "p1", "v2")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, ids(playlist.Videos))

		playlists, err = theStorage.DeletePlaylist(ctx, usr.ID, "p2")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, playlistIDs(playlists))
		assert.Equal(t, []string{"v1"}, ids(playlists[0].Videos))

		_, err = theStorage.DeletePlaylist(ctx, usr.ID, "p2")
		assert.ErrorIs(t, err, models.ErrPlaylistNotFound)

		stored, err := theStorage.GetUserByToken(ctx, usr.Token)
		require.NoError(t, err)
		require.Len(t, stored.Playlists, 1)
		assert.Equal(t, "first", stored.Playlists[0].Title)
	})

	t.Run("concurrent likes are not lost", func(t *testing.T) {
		usr := NewUser()
		require.NoError(t, theStorage.CreateUser(ctx, usr))

		const workers = 16
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, err := theStorage.PrependToSequence(ctx, usr.ID, models.SequenceLikes, Video(fmt.Sprintf("v%d", i)))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		stored, err := theStorage.GetUserByToken(ctx, usr.Token)
		require.NoError(t, err)
		assert.Len(t, stored.Likes, workers)
		for i := 0; i < workers; i++ {
			assert.Contains(t, ids(stored.Likes), fmt.Sprintf("v%d", i))
		}
	})

	t.Run("concurrent playlist additions are not lost", func(t *testing.T) {
		usr := NewUser()
		require.NoError(t, theStorage.CreateUser(ctx, usr))
		_, err := theStorage.InsertPlaylist(ctx, usr.ID, models.Playlist{ID: "mix", Title: "mix", Videos: []models.Video{}})
		require.NoError(t, err)
		_, err = theStorage.InsertPlaylist(ctx, usr.ID, models.Playlist{ID: "other", Title: "other", Videos: []models.Video{}})
		require.NoError(t, err)

		const workers = 16
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_, err := theStorage.AddPlaylistVideo(ctx, usr.ID, "mix", Video(fmt.Sprintf("v%d", i)))
				assert.NoError(t, err)
			}(i)
			// Mutations of another sequence on the same user run alongside.
			go func(i int) {
				defer wg.Done()
				_, _, err := theStorage.PrependToSequence(ctx, usr.ID, models.SequenceWatchLater, Video(fmt.Sprintf("w%d", i)))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		stored, err := theStorage.GetUserByToken(ctx, usr.Token)
		require.NoError(t, err)
		assert.Len(t, stored.Watchlater, workers)
		require.Len(t, stored.Playlists, 2)
		for _, playlist := range stored.Playlists {
			if playlist.ID == "mix" {
				assert.Len(t, playlist.Videos, workers)
			} else {
				assert.Empty(t, playlist.Videos)
			}
		}
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, theStorage.Ping(ctx))
	})
}
