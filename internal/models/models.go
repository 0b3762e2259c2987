// Package models holds the catalog and library types shared by the storage,
// service and transport layers, plus the domain errors they exchange.
package models

import "errors"

// Video is a catalog entry. Apart from its "_id" key the payload is opaque
// metadata produced by the ingestion process and is copied verbatim into
// users' sequences.
type Video map[string]interface{}

// ID returns the catalog identifier of the video.
func (v Video) ID() string {
	id, _ := v["_id"].(string)
	return id
}

// Category is a catalog category. Like Video, only "_id" is interpreted.
type Category map[string]interface{}

// ID returns the catalog identifier of the category.
func (c Category) ID() string {
	id, _ := c["_id"].(string)
	return id
}

// Playlist is a user-owned, titled list of embedded videos.
type Playlist struct {
	ID          string  `json:"id" bson:"id"`
	Title       string  `json:"title" bson:"title"`
	Description string  `json:"description,omitempty" bson:"description,omitempty"`
	Videos      []Video `json:"videos" bson:"videos"`
}

// Sequence names one of the video lists a user owns.
type Sequence string

const (
	SequenceLikes      Sequence = "likes"
	SequenceWatchLater Sequence = "watchlater"
	SequenceHistory    Sequence = "history"
)

// Sequences lists every video sequence in the order they appear on a user.
var Sequences = []Sequence{SequenceLikes, SequenceWatchLater, SequenceHistory}

// Unique reports whether the sequence rejects a second copy of the same video.
// Only likes are deduplicated; watch-later and history accumulate.
func (s Sequence) Unique() bool {
	return s == SequenceLikes
}

// Valid reports whether s names a known sequence.
func (s Sequence) Valid() bool {
	for _, known := range Sequences {
		if s == known {
			return true
		}
	}
	return false
}

// Catalog is the shape of a catalog seed file.
type Catalog struct {
	Videos     []Video    `json:"videos"`
	Categories []Category `json:"categories"`
}

// SignUpRequest carries the credentials part of a signup body. Any other
// fields of the body end up in the user's profile.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LogInRequest is the login body.
type LogInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreatePlaylistRequest is the playlist creation body.
type CreatePlaylistRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MessageResponse is the body of every error response.
type MessageResponse struct {
	Message string `json:"message"`
}

// InternalStatsResponse is returned by the internal stats endpoint.
type InternalStatsResponse struct {
	Users      int64 `json:"users"`
	Videos     int   `json:"videos"`
	Categories int   `json:"categories"`
}

const (
	StorageTypeUnknown = iota
	StorageTypeMongo
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

var (
	ErrUserNotFound              = errors.New("user not found")
	ErrUserAlreadyExists         = errors.New("user already exists")
	ErrWrongPassword             = errors.New("wrong password")
	ErrInvalidCredentialsPayload = errors.New("email and password are required")
	ErrVideoNotFound             = errors.New("video not found")
	ErrCategoryNotFound          = errors.New("category not found")
	ErrPlaylistNotFound          = errors.New("playlist not found")
	ErrBlankPlaylistTitle        = errors.New("playlist name cannot be blank")
	ErrVideoAlreadyInPlaylist    = errors.New("video is already added in the playlist")
	ErrVideoNotInPlaylist        = errors.New("video not found in the playlist")
	ErrUnknownSequence           = errors.New("unknown sequence")
)
