package models

// Track is a catalog track as seen by one request.
type Track struct {
	ID          string   `json:"id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Artists     []string `json:"artists" validate:"min=1,dive,required"`
	Album       string   `json:"album"`
	ReleaseDate string   `json:"release_date"`
	Popularity  int      `json:"popularity"`
	URL         string   `json:"spotify_url" validate:"required,url"`
	CoverURL    string   `json:"cover_url,omitempty"`
}

type Playlist struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	Owner      string `json:"owner"`
	TrackCount int    `json:"track_count"`
}
