package models

import (
	"github.com/thoas/go-funk"
)

// ContainsVideo reports whether videos holds an entry with the given id.
func ContainsVideo(videos []Video, videoID string) bool {
	return funk.Find(videos, func(v Video) bool { return v.ID() == videoID }) != nil
}

// PrependVideo returns a new slice with video at the front. When unique is set
// and the video is already present, the input is returned unchanged and added
// is false.
func PrependVideo(videos []Video, video Video, unique bool) (result []Video, added bool) {
	if unique && ContainsVideo(videos, video.ID()) {
		return videos, false
	}

	result = make([]Video, 0, len(videos)+1)
	result = append(result, video)
	result = append(result, videos...)

	return result, true
}

// RemoveVideo returns the entries of videos whose id differs from videoID.
// The result is never nil.
func RemoveVideo(videos []Video, videoID string) []Video {
	if len(videos) == 0 {
		return []Video{}
	}

	return funk.Filter(videos, func(v Video) bool { return v.ID() != videoID }).([]Video)
}

// FindPlaylist returns the index of the playlist with the given id, or -1.
func FindPlaylist(playlists []Playlist, playlistID string) int {
	for i := range playlists {
		if playlists[i].ID == playlistID {
			return i
		}
	}

	return -1
}

// PrependPlaylist returns a new slice with playlist at the front.
func PrependPlaylist(playlists []Playlist, playlist Playlist) []Playlist {
	result := make([]Playlist, 0, len(playlists)+1)
	result = append(result, playlist)

	return append(result, playlists...)
}

// RemovePlaylist drops the playlist with the given id. It reports
// ErrPlaylistNotFound when no such playlist exists.
func RemovePlaylist(playlists []Playlist, playlistID string) ([]Playlist, error) {
	idx := FindPlaylist(playlists, playlistID)
	if idx < 0 {
		return playlists, ErrPlaylistNotFound
	}

	result := make([]Playlist, 0, len(playlists)-1)
	result = append(result, playlists[:idx]...)

	return append(result, playlists[idx+1:]...), nil
}

// AddVideoToPlaylist prepends video to the videos of the given playlist and
// returns the updated sequence together with the updated playlist. The
// playlist keeps its position in the sequence.
func AddVideoToPlaylist(playlists []Playlist, playlistID string, video Video) ([]Playlist, Playlist, error) {
	idx := FindPlaylist(playlists, playlistID)
	if idx < 0 {
		return playlists, Playlist{}, ErrPlaylistNotFound
	}

	videos, added := PrependVideo(playlists[idx].Videos, video, true)
	if !added {
		return playlists, playlists[idx], ErrVideoAlreadyInPlaylist
	}

	return replacePlaylistVideos(playlists, idx, videos)
}

// RemoveVideoFromPlaylist drops the video from the given playlist. Unlike
// RemoveVideo it fails when the video is absent.
func RemoveVideoFromPlaylist(playlists []Playlist, playlistID, videoID string) ([]Playlist, Playlist, error) {
	idx := FindPlaylist(playlists, playlistID)
	if idx < 0 {
		return playlists, Playlist{}, ErrPlaylistNotFound
	}

	if !ContainsVideo(playlists[idx].Videos, videoID) {
		return playlists, playlists[idx], ErrVideoNotInPlaylist
	}

	return replacePlaylistVideos(playlists, idx, RemoveVideo(playlists[idx].Videos, videoID))
}

func replacePlaylistVideos(playlists []Playlist, idx int, videos []Video) ([]Playlist, Playlist, error) {
	result := make([]Playlist, len(playlists))
	copy(result, playlists)

	updated := result[idx]
	updated.Videos = videos
	result[idx] = updated

	return result, updated, nil
}
