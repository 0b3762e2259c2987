// Package service implements the video library use cases: catalog reads,
// the per-user sequences, playlists and accounts. Transport packages call it
// with the user already resolved by the auth gate.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

type sequenceKeeper interface {
	PrependToSequence(
		ctx context.Context,
		userID string,
		seq models.Sequence,
		video models.Video,
	) (bool, []models.Video, error)

	PullFromSequence(
		ctx context.Context,
		userID string,
		seq models.Sequence,
		videoID string,
	) ([]models.Video, error)

	ClearSequence(ctx context.Context, userID string, seq models.Sequence) error
}

type playlistKeeper interface {
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
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error

	GetUserByEmail(ctx context.Context, email string) (*user.User, error)

	CountUsers(ctx context.Context) (int64, error)
}

type catalogSeeder interface {
	SeedCatalog(ctx context.Context, catalog models.Catalog) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	sequenceKeeper
	playlistKeeper
	userKeeper
	catalogSeeder
	pinger
}

type catalogReader interface {
	Videos(ctx context.Context) ([]models.Video, error)
	Video(ctx context.Context, videoID string) (models.Video, error)
	Categories(ctx context.Context) ([]models.Category, error)
	Category(ctx context.Context, categoryID string) (models.Category, error)
	Invalidate()
}

type credentialsKeeper interface {
	Token(email, password string) (string, error)
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) error
}

type Service struct {
	db          storage
	catalog     catalogReader
	credentials credentialsKeeper
	validate    *validator.Validate
	newID       func() string
}

// InitOption tunes New.
type InitOption func(*Service)

// WithIDGenerator replaces uuid.NewString for user and playlist ids.
func WithIDGenerator(newID func() string) InitOption {
	return func(s *Service) {
		s.newID = newID
	}
}

func New(
	db storage,
	catalog catalogReader,
	credentials credentialsKeeper,
	optionsProto ...InitOption,
) *Service {
	s := &Service{
		db:          db,
		catalog:     catalog,
		credentials: credentials,
		validate:    validator.New(),
		newID:       uuid.NewString,
	}
	for _, protoOption := range optionsProto {
		protoOption(s)
	}

	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) ListVideos(ctx context.Context) ([]models.Video, error) {
	return s.catalog.Videos(ctx)
}

func (s *Service) GetVideo(ctx context.Context, videoID string) (models.Video, error) {
	return s.catalog.Video(ctx, videoID)
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.catalog.Categories(ctx)
}

func (s *Service) GetCategory(ctx context.Context, categoryID string) (models.Category, error) {
	return s.catalog.Category(ctx, categoryID)
}

// LoadCatalogSeed upserts the catalog stored in the JSON file at path and
// drops the cached copy.
func (s *Service) LoadCatalogSeed(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("in internal/service/service.go: error while reading catalog seed: %w", err)
	}

	var catalog models.Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return 0, fmt.Errorf("in internal/service/service.go: error while parsing catalog seed: %w", err)
	}

	catalog.Videos = funk.Filter(catalog.Videos, func(v models.Video) bool {
		if v.ID() == "" {
			logger.Log.Warnln("skipping a seed video without `_id`")
			return false
		}
		return true
	}).([]models.Video)
	catalog.Categories = funk.Filter(catalog.Categories, func(c models.Category) bool {
		return c.ID() != ""
	}).([]models.Category)

	if err := s.db.SeedCatalog(ctx, catalog); err != nil {
		return 0, fmt.Errorf("in internal/service/service.go: error while `s.db.SeedCatalog()` calling: %w", err)
	}
	s.catalog.Invalidate()

	return len(catalog.Videos) + len(catalog.Categories), nil
}

// Sequence returns one of the caller's video sequences.
func (s *Service) Sequence(usr *user.User, seq models.Sequence) ([]models.Video, error) {
	if !seq.Valid() {
		return nil, models.ErrUnknownSequence
	}

	return usr.Sequence(seq), nil
}

// AddToSequence prepends a copy of the catalog video to the sequence. The
// video must be in the catalog even when it is already liked. For likes an
// already liked video is reported with added set to false and the sequence is
// left as is.
func (s *Service) AddToSequence(
	ctx context.Context,
	usr *user.User,
	seq models.Sequence,
	videoID string,
) (added bool, videos []models.Video, err error) {
	if !seq.Valid() {
		return false, nil, models.ErrUnknownSequence
	}

	video, err := s.catalog.Video(ctx, videoID)
	if err != nil {
		return false, nil, err
	}

	if seq.Unique() && models.ContainsVideo(usr.Sequence(seq), videoID) {
		return false, usr.Sequence(seq), nil
	}

	return s.db.PrependToSequence(ctx, usr.ID, seq, video)
}

// RemoveFromSequence drops every entry of the video from the sequence.
// Removing a video that is not there succeeds.
func (s *Service) RemoveFromSequence(
	ctx context.Context,
	usr *user.User,
	seq models.Sequence,
	videoID string,
) ([]models.Video, error) {
	if !seq.Valid() {
		return nil, models.ErrUnknownSequence
	}

	return s.db.PullFromSequence(ctx, usr.ID, seq, videoID)
}

func (s *Service) ClearSequence(ctx context.Context, usr *user.User, seq models.Sequence) error {
	if !seq.Valid() {
		return models.ErrUnknownSequence
	}

	return s.db.ClearSequence(ctx, usr.ID, seq)
}

func (s *Service) ListPlaylists(usr *user.User) []models.Playlist {
	if usr.Playlists == nil {
		return []models.Playlist{}
	}

	return usr.Playlists
}

func (s *Service) GetPlaylist(usr *user.User, playlistID string) (models.Playlist, error) {
	idx := models.FindPlaylist(usr.Playlists, playlistID)
	if idx < 0 {
		return models.Playlist{}, models.ErrPlaylistNotFound
	}

	return usr.Playlists[idx], nil
}

// CreatePlaylist adds an empty playlist in front of the caller's playlists.
func (s *Service) CreatePlaylist(
	ctx context.Context,
	usr *user.User,
	request models.CreatePlaylistRequest,
) (models.Playlist, []models.Playlist, error) {
	title := strings.TrimSpace(request.Title)
	if title == "" {
		return models.Playlist{}, nil, models.ErrBlankPlaylistTitle
	}

	playlist := models.Playlist{
		ID:          s.newID(),
		Title:       title,
		Description: strings.TrimSpace(request.Description),
		Videos:      []models.Video{},
	}

	playlists, err := s.db.InsertPlaylist(ctx, usr.ID, playlist)
	if err != nil {
		return models.Playlist{}, nil, err
	}

	return playlist, playlists, nil
}

// AddVideoToPlaylist checks the playlist first and the video second, so an
// unknown playlist is reported even when the video is unknown too.
func (s *Service) AddVideoToPlaylist(
	ctx context.Context,
	usr *user.User,
	playlistID string,
	videoID string,
) (models.Playlist, error) {
	if _, err := s.GetPlaylist(usr, playlistID); err != nil {
		return models.Playlist{}, err
	}

	video, err := s.catalog.Video(ctx, videoID)
	if err != nil {
		return models.Playlist{}, err
	}

	return s.db.AddPlaylistVideo(ctx, usr.ID, playlistID, video)
}

func (s *Service) RemoveVideoFromPlaylist(
	ctx context.Context,
	usr *user.User,
	playlistID string,
	videoID string,
) (models.Playlist, error) {
	return s.db.RemovePlaylistVideo(ctx, usr.ID, playlistID, videoID)
}

func (s *Service) DeletePlaylist(ctx context.Context, usr *user.User, playlistID string) ([]models.Playlist, error) {
	return s.db.DeletePlaylist(ctx, usr.ID, playlistID)
}

func isReservedField(key string) bool {
	return funk.ContainsString(user.ReservedFields, key)
}

// SignUp registers an account from a signup body. email and password are
// required; every other non-reserved field is kept as profile data. The
// password itself is stored only as a bcrypt hash.
func (s *Service) SignUp(ctx context.Context, body map[string]interface{}) (*user.User, string, error) {
	email, _ := body["email"].(string)
	password, _ := body["password"].(string)
	credentials := models.SignUpRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	}
	if err := s.validate.Struct(credentials); err != nil {
		return nil, "", fmt.Errorf("%w: %s", models.ErrInvalidCredentialsPayload, err.Error())
	}

	token, err := s.credentials.Token(credentials.Email, credentials.Password)
	if err != nil {
		return nil, "", err
	}

	hash, err := s.credentials.HashPassword(credentials.Password)
	if err != nil {
		return nil, "", err
	}

	profile := map[string]interface{}{}
	for key, value := range body {
		if !isReservedField(key) {
			profile[key] = value
		}
	}

	usr := user.New(s.newID(), credentials.Email, token, hash, profile)
	if err := s.db.CreateUser(ctx, usr); err != nil {
		return nil, "", err
	}

	return usr, token, nil
}

// LogIn checks the credentials against the stored account. An unknown email
// yields models.ErrUserNotFound and a wrong password models.ErrWrongPassword.
func (s *Service) LogIn(ctx context.Context, request models.LogInRequest) (*user.User, string, error) {
	request.Email = strings.TrimSpace(request.Email)
	if err := s.validate.Struct(request); err != nil {
		return nil, "", fmt.Errorf("%w: %s", models.ErrInvalidCredentialsPayload, err.Error())
	}

	usr, err := s.db.GetUserByEmail(ctx, request.Email)
	if err != nil {
		return nil, "", err
	}

	if err := s.credentials.CheckPassword(usr.PasswordHash, request.Password); err != nil {
		return nil, "", err
	}

	token, err := s.credentials.Token(request.Email, request.Password)
	if err != nil {
		return nil, "", err
	}
	if token != usr.Token {
		// The signing secret changed since signup. The stored token is the
		// one the auth gate knows, so hand that one out.
		logger.Log.Warnln("derived token differs from the stored one, was the signing secret rotated?", "user", usr.ID)
		token = usr.Token
	}

	return usr, token, nil
}

// Stats backs the internal statistics endpoint.
func (s *Service) Stats(ctx context.Context) (models.InternalStatsResponse, error) {
	users, err := s.db.CountUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	videos, err := s.catalog.Videos(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		Users:      users,
		Videos:     len(videos),
		Categories: len(categories),
	}, nil
}

// IsClientError reports whether err is a domain error that maps to a 4xx
// response rather than an infrastructure failure.
func IsClientError(err error) bool {
	for _, target := range []error{
		models.ErrUserNotFound,
		models.ErrUserAlreadyExists,
		models.ErrWrongPassword,
		models.ErrInvalidCredentialsPayload,
		models.ErrVideoNotFound,
		models.ErrCategoryNotFound,
		models.ErrPlaylistNotFound,
		models.ErrBlankPlaylistTitle,
		models.ErrVideoAlreadyInPlaylist,
		models.ErrVideoNotInPlaylist,
		models.ErrUnknownSequence,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
