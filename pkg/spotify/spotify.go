package spotify

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/utils"
	spotifyapi "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

type SpotifyService interface {
	SearchPlaylists(ctx context.Context, query string, limit int) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]models.Track, error)
}

type spotifyService struct {
	client   *spotifyapi.Client
	log      *zap.Logger
	validate *validator.Validate

	searchBreaker *gobreaker.CircuitBreaker[*spotifyapi.SearchResult]
	itemsBreaker  *gobreaker.CircuitBreaker[*spotifyapi.PlaylistItemPage]
}

// NewSpotifyService authenticates with the client credentials flow; tokens are refreshed
// by the oauth2 transport for as long as ctx lives.
func NewSpotifyService(ctx context.Context, clientID, clientSecret string, log *zap.Logger) SpotifyService {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	client := spotifyapi.New(cfg.Client(ctx), spotifyapi.WithRetry(true))
	return newSpotifyService(client, log)
}

func newSpotifyService(client *spotifyapi.Client, log *zap.Logger) *spotifyService {
	return &spotifyService{
		client:        client,
		log:           log,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		searchBreaker: utils.NewBreaker[*spotifyapi.SearchResult]("spotify-search", log),
		itemsBreaker:  utils.NewBreaker[*spotifyapi.PlaylistItemPage]("spotify-playlist-items", log),
	}
}

func (s *spotifyService) SearchPlaylists(ctx context.Context, query string, limit int) ([]models.Playlist, error) {
	result, err := s.searchBreaker.Execute(func() (*spotifyapi.SearchResult, error) {
		return s.client.Search(ctx, query, spotifyapi.SearchTypePlaylist, spotifyapi.Limit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search playlists: %w", err)
	}

	if result == nil || result.Playlists == nil {
		return nil, nil
	}

	playlists := make([]models.Playlist, 0, len(result.Playlists.Playlists))
	for _, item := range result.Playlists.Playlists {
		playlist := toPlaylist(item)
		if err := s.validate.Struct(playlist); err != nil {
			// the search API returns null entries for playlists it can no longer show
			s.log.Debug("Skipping invalid playlist", zap.String("query", query), zap.Error(err))
			continue
		}
		playlists = append(playlists, playlist)
	}

	return playlists, nil
}

func (s *spotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]models.Track, error) {
	page, err := s.itemsBreaker.Execute(func() (*spotifyapi.PlaylistItemPage, error) {
		return s.client.GetPlaylistItems(ctx, spotifyapi.ID(playlistID), spotifyapi.Limit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	if page == nil {
		return nil, nil
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.IsLocal || item.Track.Track == nil {
			continue
		}

		track := toTrack(item.Track.Track)
		if err := s.validate.Struct(track); err != nil {
			s.log.Debug("Skipping invalid track",
				zap.String("playlist_id", playlistID),
				zap.String("track_id", track.ID),
				zap.Error(err))
			continue
		}
		tracks = append(tracks, track)
	}

	return tracks, nil
}

func toPlaylist(p spotifyapi.SimplePlaylist) models.Playlist {
	return models.Playlist{
		ID:         string(p.ID),
		Name:       p.Name,
		Owner:      p.Owner.DisplayName,
		TrackCount: int(p.Tracks.Total),
	}
}

func toTrack(t *spotifyapi.FullTrack) models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, artist := range t.Artists {
		artists = append(artists, artist.Name)
	}

	var cover string
	if len(t.Album.Images) > 0 {
		cover = t.Album.Images[0].URL
	}

	return models.Track{
		ID:          string(t.ID),
		Name:        t.Name,
		Artists:     artists,
		Album:       t.Album.Name,
		ReleaseDate: t.Album.ReleaseDate,
		Popularity:  int(t.Popularity),
		URL:         t.ExternalURLs["spotify"],
		CoverURL:    cover,
	}
}
