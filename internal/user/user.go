// Package user defines the account record owning the likes, watch-later,
// history and playlist sequences.
package user

import (
	"encoding/json"

	"github.com/patric-chuzhbe/vidlib/internal/models"
)

// User is a registered account.
//
// Profile keeps whatever extra fields were submitted at signup (names, avatar
// and so on). They are rendered at the top level of the user JSON next to the
// fixed fields, which always take precedence.
type User struct {
	ID           string                 `bson:"_id"`
	Email        string                 `bson:"email"`
	Token        string                 `bson:"token"`
	PasswordHash string                 `bson:"passwordHash"`
	Profile      map[string]interface{} `bson:"profile,omitempty"`
	Likes        []models.Video         `bson:"likes"`
	Watchlater   []models.Video         `bson:"watchlater"`
	History      []models.Video         `bson:"history"`
	Playlists    []models.Playlist      `bson:"playlists"`
}

// New builds a user with empty sequences.
func New(id, email, token, passwordHash string, profile map[string]interface{}) *User {
	return &User{
		ID:           id,
		Email:        email,
		Token:        token,
		PasswordHash: passwordHash,
		Profile:      profile,
		Likes:        []models.Video{},
		Watchlater:   []models.Video{},
		History:      []models.Video{},
		Playlists:    []models.Playlist{},
	}
}

// Sequence returns the named video sequence. The result is never nil.
func (u *User) Sequence(seq models.Sequence) []models.Video {
	var videos []models.Video
	switch seq {
	case models.SequenceLikes:
		videos = u.Likes
	case models.SequenceWatchLater:
		videos = u.Watchlater
	case models.SequenceHistory:
		videos = u.History
	}
	if videos == nil {
		return []models.Video{}
	}

	return videos
}

// SetSequence replaces the named video sequence.
func (u *User) SetSequence(seq models.Sequence, videos []models.Video) {
	switch seq {
	case models.SequenceLikes:
		u.Likes = videos
	case models.SequenceWatchLater:
		u.Watchlater = videos
	case models.SequenceHistory:
		u.History = videos
	}
}

// Clone returns a copy that shares no slices with u. Embedded videos are
// treated as immutable and are not copied.
func (u *User) Clone() *User {
	clone := *u
	if u.Profile != nil {
		clone.Profile = make(map[string]interface{}, len(u.Profile))
		for k, v := range u.Profile {
			clone.Profile[k] = v
		}
	}
	clone.Likes = append([]models.Video{}, u.Likes...)
	clone.Watchlater = append([]models.Video{}, u.Watchlater...)
	clone.History = append([]models.Video{}, u.History...)
	clone.Playlists = make([]models.Playlist, 0, len(u.Playlists))
	for _, p := range u.Playlists {
		p.Videos = append([]models.Video{}, p.Videos...)
		clone.Playlists = append(clone.Playlists, p)
	}

	return &clone
}

// MarshalJSON renders the public view of the user. The password hash is
// never part of it.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(u.Profile)+8)
	for k, v := range u.Profile {
		out[k] = v
	}
	out["_id"] = u.ID
	out["email"] = u.Email
	out["token"] = u.Token
	out["likes"] = u.Sequence(models.SequenceLikes)
	out["watchlater"] = u.Sequence(models.SequenceWatchLater)
	out["history"] = u.Sequence(models.SequenceHistory)
	playlists := u.Playlists
	if playlists == nil {
		playlists = []models.Playlist{}
	}
	out["playlists"] = playlists

	return json.Marshal(out)
}

// ReservedFields lists the keys a profile can never override.
var ReservedFields = []string{
	"_id", "email", "token", "password", "passwordHash",
	"likes", "watchlater", "history", "playlists",
}
