// Package jsondb is a storage backend keeping everything in memory and
// persisting it to a JSON file, which is read on start and rewritten on Close.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

// JSONDB is safe for concurrent use. Every operation holds mu for its whole
// read-modify-write, which makes each mutation atomic.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct

	byEmail map[string]string
	byToken map[string]string
}

// CacheStruct is the persisted state.
type CacheStruct struct {
	Videos     []models.Video        `json:"videos"`
	Categories []models.Category     `json:"categories"`
	Users      map[string]userRecord `json:"users"`
}

// userRecord is the on-disk form of a user. Unlike user.User's public JSON it
// keeps the password hash.
type userRecord struct {
	ID           string                 `json:"_id"`
	Email        string                 `json:"email"`
	Token        string                 `json:"token"`
	PasswordHash string                 `json:"passwordHash"`
	Profile      map[string]interface{} `json:"profile,omitempty"`
	Likes        []models.Video         `json:"likes"`
	Watchlater   []models.Video         `json:"watchlater"`
	History      []models.Video         `json:"history"`
	Playlists    []models.Playlist      `json:"playlists"`
}

func toRecord(usr *user.User) userRecord {
	return userRecord{
		ID:           usr.ID,
		Email:        usr.Email,
		Token:        usr.Token,
		PasswordHash: usr.PasswordHash,
		Profile:      usr.Profile,
		Likes:        usr.Likes,
		Watchlater:   usr.Watchlater,
		History:      usr.History,
		Playlists:    usr.Playlists,
	}
}

func (r userRecord) toUser() *user.User {
	return &user.User{
		ID:           r.ID,
		Email:        r.Email,
		Token:        r.Token,
		PasswordHash: r.PasswordHash,
		Profile:      r.Profile,
		Likes:        r.Likes,
		Watchlater:   r.Watchlater,
		History:      r.History,
		Playlists:    r.Playlists,
	}
}

func emptyCache() CacheStruct {
	return CacheStruct{
		Videos:     []models.Video{},
		Categories: []models.Category{},
		Users:      map[string]userRecord{},
	}
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	// Write to a sibling file first so a crash mid-write leaves the old
	// database intact.
	tmpName := fileName + ".tmp"
	if err := os.WriteFile(tmpName, jsonData, 0644); err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	if err := os.Rename(tmpName, fileName); err != nil {
		return fmt.Errorf("error replacing file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// NewInMemory returns a JSONDB without a backing file.
func NewInMemory() *JSONDB {
	db := &JSONDB{Cache: emptyCache()}
	db.reindex()

	return db
}

// New opens fileName, creating it when it does not exist yet.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    emptyCache(),
	}

	err := parseJSONFile(fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("in internal/db/jsondb/jsondb.go: error while `parseJSONFile()` calling: %w", err)
		}
		db.Cache = emptyCache()
		if err := writeToJSONFile(fileName, db.Cache); err != nil {
			return nil, err
		}
	}
	if db.Cache.Users == nil {
		db.Cache.Users = map[string]userRecord{}
	}
	db.reindex()

	return db, nil
}

func (db *JSONDB) reindex() {
	db.byEmail = make(map[string]string, len(db.Cache.Users))
	db.byToken = make(map[string]string, len(db.Cache.Users))
	for id, record := range db.Cache.Users {
		db.byEmail[record.Email] = id
		db.byToken[record.Token] = id
	}
}

// Flush writes the current state to the backing file, if any.
func (db *JSONDB) Flush() error {
	if db.fileName == "" {
		return nil
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func (db *JSONDB) Close() error {
	return db.Flush()
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (db *JSONDB) ListVideos(ctx context.Context) ([]models.Video, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return append([]models.Video{}, db.Cache.Videos...), nil
}

func (db *JSONDB) ListCategories(ctx context.Context) ([]models.Category, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return append([]models.Category{}, db.Cache.Categories...), nil
}

func (db *JSONDB) SeedCatalog(ctx context.Context, catalog models.Catalog) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, video := range catalog.Videos {
		db.Cache.Videos = upsertByID(db.Cache.Videos, video, models.Video.ID)
	}
	for _, category := range catalog.Categories {
		db.Cache.Categories = upsertByID(db.Cache.Categories, category, models.Category.ID)
	}

	return nil
}

func upsertByID[T any](items []T, item T, id func(T) string) []T {
	for i := range items {
		if id(items[i]) == id(item) {
			items[i] = item
			return items
		}
	}

	return append(items, item)
}

func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.byEmail[usr.Email]; taken {
		return models.ErrUserAlreadyExists
	}

	db.Cache.Users[usr.ID] = toRecord(usr.Clone())
	db.byEmail[usr.Email] = usr.ID
	db.byToken[usr.Token] = usr.ID

	return nil
}

func (db *JSONDB) getUser(index map[string]string, key string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return nil, models.ErrUserNotFound
	}

	return db.Cache.Users[id].toUser().Clone(), nil
}

func (db *JSONDB) GetUserByToken(ctx context.Context, token string) (*user.User, error) {
	return db.getUser(db.byToken, token)
}

func (db *JSONDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.getUser(db.byEmail, email)
}

func (db *JSONDB) CountUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.Users)), nil
}

// mutate runs fn on the stored user under the write lock and saves the
// result unless fn fails.
func (db *JSONDB) mutate(userID string, fn func(usr *user.User) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	record, ok := db.Cache.Users[userID]
	if !ok {
		return models.ErrUserNotFound
	}

	usr := record.toUser()
	if err := fn(usr); err != nil {
		return err
	}
	db.Cache.Users[userID] = toRecord(usr)

	return nil
}

func (db *JSONDB) PrependToSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	video models.Video,
) (added bool, videos []models.Video, err error) {
	err = db.mutate(userID, func(usr *user.User) error {
		videos, added = models.PrependVideo(usr.Sequence(seq), video, seq.Unique())
		usr.SetSequence(seq, videos)
		return nil
	})
	if err != nil {
		return false, nil, err
	}

	return added, append([]models.Video{}, videos...), nil
}

func (db *JSONDB) PullFromSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	videoID string,
) ([]models.Video, error) {
	var videos []models.Video
	err := db.mutate(userID, func(usr *user.User) error {
		videos = models.RemoveVideo(usr.Sequence(seq), videoID)
		usr.SetSequence(seq, videos)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return append([]models.Video{}, videos...), nil
}

func (db *JSONDB) ClearSequence(ctx context.Context, userID string, seq models.Sequence) error {
	return db.mutate(userID, func(usr *user.User) error {
		usr.SetSequence(seq, []models.Video{})
		return nil
	})
}

func clonePlaylists(playlists []models.Playlist) []models.Playlist {
	result := make([]models.Playlist, 0, len(playlists))
	for _, p := range playlists {
		p.Videos = append([]models.Video{}, p.Videos...)
		result = append(result, p)
	}

	return result
}

func (db *JSONDB) InsertPlaylist(ctx context.Context, userID string, playlist models.Playlist) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := db.mutate(userID, func(usr *user.User) error {
		usr.Playlists = models.PrependPlaylist(usr.Playlists, playlist)
		playlists = usr.Playlists
		return nil
	})
	if err != nil {
		return nil, err
	}

	return clonePlaylists(playlists), nil
}

func (db *JSONDB) DeletePlaylist(ctx context.Context, userID, playlistID string) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := db.mutate(userID, func(usr *user.User) error {
		remaining, err := models.RemovePlaylist(usr.Playlists, playlistID)
		if err != nil {
			return err
		}
		usr.Playlists = remaining
		playlists = remaining
		return nil
	})
	if err != nil {
		return nil, err
	}

	return clonePlaylists(playlists), nil
}

func (db *JSONDB) AddPlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	video models.Video,
) (models.Playlist, error) {
	var playlist models.Playlist
	err := db.mutate(userID, func(usr *user.User) error {
		playlists, updated, err := models.AddVideoToPlaylist(usr.Playlists, playlistID, video)
		if err != nil {
			return err
		}
		usr.Playlists = playlists
		playlist = updated
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}

	return clonePlaylists([]models.Playlist{playlist})[0], nil
}

func (db *JSONDB) RemovePlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	videoID string,
) (models.Playlist, error) {
	var playlist models.Playlist
	err := db.mutate(userID, func(usr *user.User) error {
		playlists, updated, err := models.RemoveVideoFromPlaylist(usr.Playlists, playlistID, videoID)
		if err != nil {
			return err
		}
		usr.Playlists = playlists
		playlist = updated
		return nil
	})
	if err != nil {
		return models.Playlist{}, err
	}

	return clonePlaylists([]models.Playlist{playlist})[0], nil
}
