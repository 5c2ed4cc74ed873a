package handler

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/service"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/utils"
)

type errorResponse struct {
	Error string `json:"error"`
}

type trackResponse struct {
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	ReleaseDate string `json:"release_date"`
	Popularity  int    `json:"popularity"`
	SpotifyURL  string `json:"spotify_url"`
	CoverURL    string `json:"cover_url,omitempty"`
}

type recommendResponse struct {
	Emotion     string        `json:"emotion"`
	Track       trackResponse `json:"track"`
	CacheHit    bool          `json:"cache_hit"`
	SavedMsg    string        `json:"saved_msg"`
	DownloadMsg string        `json:"download_msg"`
	FileName    string        `json:"file_name"`
	FileURL     string        `json:"file_url"`
	FileMime    string        `json:"file_mime,omitempty"`
	FileSize    int64         `json:"file_size,omitempty"`
	FileHeadB64 string        `json:"file_head_b64,omitempty"`
	FileType    string        `json:"file_type,omitempty"`
}

type songsResponse struct {
	Files []string `json:"files"`
}

type statsResponse struct {
	SavedSongs    int64   `json:"saved_songs"`
	AudioFiles    int     `json:"audio_files"`
	DiskTotal     uint64  `json:"disk_total_bytes"`
	DiskFree      uint64  `json:"disk_free_bytes"`
	DiskUsedRatio float64 `json:"disk_used_percent"`
}

func newRecommendResponse(res *service.Result) recommendResponse {
	return recommendResponse{
		Emotion: res.Emotion,
		Track: trackResponse{
			Name:        res.Track.Name,
			Artist:      utils.JoinArtists(res.Track.Artists),
			Album:       res.Track.Album,
			ReleaseDate: res.Track.ReleaseDate,
			Popularity:  res.Track.Popularity,
			SpotifyURL:  res.Track.URL,
			CoverURL:    res.Track.CoverURL,
		},
		CacheHit:    res.CacheHit,
		SavedMsg:    res.SavedMsg,
		DownloadMsg: res.DownloadMsg,
		FileName:    res.FileName,
		FileURL:     res.FileURL,
		FileMime:    res.FileMime,
		FileSize:    res.FileSize,
		FileHeadB64: res.FileHeadB64,
		FileType:    res.FileType,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a recommendation failure to its HTTP status.
func statusFor(err error) int {
	var serr *service.Error
	if !errors.As(err, &serr) {
		return http.StatusInternalServerError
	}

	switch serr.Kind {
	case service.KindInput:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
