package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/db"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
)

// mp3Bytes starts with an ID3v2.4 header so file type detection sees an MP3.
var mp3Bytes = append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), bytes.Repeat([]byte{0xff, 0xfb}, 200)...)

func photoBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(16, 16, color.White), imaging.PNG); err != nil {
		t.Fatalf("failed to encode photo: %v", err)
	}
	return buf.Bytes()
}

func photo(t *testing.T) *bytes.Reader {
	t.Helper()
	return bytes.NewReader(photoBytes(t))
}

type fakeClassifier struct {
	label string
	err   error
}

func (f *fakeClassifier) Classify(ctx context.Context, img image.Image) (string, error) {
	return f.label, f.err
}

type fakeCatalog struct {
	playlists []models.Playlist
	tracks    map[string][]models.Track
	searchErr error
	tracksErr error

	mu        sync.Mutex
	queries   []string
	requested []string
}

func (f *fakeCatalog) SearchPlaylists(ctx context.Context, query string, limit int) ([]models.Playlist, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return f.playlists, f.searchErr
}

func (f *fakeCatalog) PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]models.Track, error) {
	f.mu.Lock()
	f.requested = append(f.requested, playlistID)
	f.mu.Unlock()
	return f.tracks[playlistID], f.tracksErr
}

type fakeFetcher struct {
	content []byte
	err     error
	gate    chan struct{}
	started chan struct{}
	calls   atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, trackURL, dest string) error {
	if f.calls.Add(1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, f.content, 0o644)
}

type fakeValidator struct {
	duration time.Duration
	err      error
}

func (f *fakeValidator) Validate(ctx context.Context, path string) (time.Duration, error) {
	return f.duration, f.err
}

type fakeTagger struct {
	err   error
	calls atomic.Int32
}

func (f *fakeTagger) Tag(path string, track models.Track) error {
	f.calls.Add(1)
	return f.err
}

type fakeDB struct {
	mu      sync.Mutex
	songs   map[string]models.SavedSong
	getErr  error
	saveErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{songs: map[string]models.SavedSong{}}
}

func (f *fakeDB) GetSavedSong(ctx context.Context, id string) (models.SavedSong, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return models.SavedSong{}, f.getErr
	}
	song, ok := f.songs[id]
	if !ok {
		return models.SavedSong{}, db.ErrNotFound
	}
	return song, nil
}

func (f *fakeDB) SaveSong(ctx context.Context, song models.SavedSong) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.saveErr != nil {
		return f.saveErr
	}
	f.songs[song.ID] = song
	return nil
}

func (f *fakeDB) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.songs)
}
