package handler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/db"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/service"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func photoRequest(t *testing.T, target string, headers map[string]string) *http.Request {
	t.Helper()

	var img bytes.Buffer
	if err := imaging.Encode(&img, imaging.New(16, 16, color.White), imaging.PNG); err != nil {
		t.Fatalf("failed to encode photo: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", "face.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(part, &img); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func newTestRouter(h Handler) http.Handler {
	return NewRouter(h, RouterConfig{CORSAllowedOrigins: []string{"*"}, RateLimitRequests: 1000}, zap.NewNop())
}

type fakeRecommender struct {
	res *service.Result
	err error
}

func (f *fakeRecommender) Recommend(ctx context.Context, photo io.Reader) (*service.Result, error) {
	return f.res, f.err
}

type fakeDB struct {
	mu      sync.Mutex
	songs   map[string]models.SavedSong
	pingErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{songs: map[string]models.SavedSong{}}
}

func (f *fakeDB) GetSavedSong(ctx context.Context, id string) (models.SavedSong, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	song, ok := f.songs[id]
	if !ok {
		return models.SavedSong{}, db.ErrNotFound
	}
	return song, nil
}

func (f *fakeDB) SaveSong(ctx context.Context, song models.SavedSong) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.songs[song.ID] = song
	return nil
}

func (f *fakeDB) CountSavedSongs(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.songs)), nil
}

func (f *fakeDB) Ping(ctx context.Context) error {
	return f.pingErr
}

type fakeClassifier struct{ label string }

func (f fakeClassifier) Classify(ctx context.Context, img image.Image) (string, error) {
	return f.label, nil
}

type fakeCatalog struct {
	tracks []models.Track
}

func (f *fakeCatalog) SearchPlaylists(ctx context.Context, query string, limit int) ([]models.Playlist, error) {
	return []models.Playlist{{ID: "P1", Name: query}}, nil
}

func (f *fakeCatalog) PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]models.Track, error) {
	return f.tracks, nil
}

type fakeFetcher struct {
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, trackURL, dest string) error {
	f.calls.Add(1)
	return os.WriteFile(dest, bytes.Repeat([]byte{0xff, 0xfb}, 500), 0o644)
}

type fakeValidator struct{ duration time.Duration }

func (f fakeValidator) Validate(ctx context.Context, path string) (time.Duration, error) {
	return f.duration, nil
}

type noopTagger struct{}

func (noopTagger) Tag(path string, track models.Track) error { return nil }
