package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

func newSongsHandler(t *testing.T) (*handler, string, []byte) {
	t.Helper()

	dir := t.TempDir()
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	writeFile(t, dir, "Song_Art.mp3", data)

	h := NewHandler(&fakeRecommender{}, newFakeDB(), dir, 1<<20, zap.NewNop()).(*handler)
	return h, dir, data
}

func TestServeSongRanges(t *testing.T) {
	h, _, data := newSongsHandler(t)
	router := newTestRouter(h)

	tests := []struct {
		name         string
		rangeHeader  string
		wantStatus   int
		wantBody     []byte
		contentRange string
	}{
		{
			name:       "no range",
			wantStatus: http.StatusOK,
			wantBody:   data,
		},
		{
			name:         "first hundred bytes",
			rangeHeader:  "bytes=0-99",
			wantStatus:   http.StatusPartialContent,
			wantBody:     data[:100],
			contentRange: "bytes 0-99/1000",
		},
		{
			name:         "open ended",
			rangeHeader:  "bytes=900-",
			wantStatus:   http.StatusPartialContent,
			wantBody:     data[900:],
			contentRange: "bytes 900-999/1000",
		},
		{
			name:         "end clamped",
			rangeHeader:  "bytes=990-5000",
			wantStatus:   http.StatusPartialContent,
			wantBody:     data[990:],
			contentRange: "bytes 990-999/1000",
		},
		{
			name:         "suffix",
			rangeHeader:  "bytes=-10",
			wantStatus:   http.StatusPartialContent,
			wantBody:     data[990:],
			contentRange: "bytes 990-999/1000",
		},
		{
			name:         "start past end",
			rangeHeader:  "bytes=2000-",
			wantStatus:   http.StatusRequestedRangeNotSatisfiable,
			contentRange: "bytes */1000",
		},
		{
			name:        "non numeric falls back to full file",
			rangeHeader: "bytes=abc-def",
			wantStatus:  http.StatusOK,
			wantBody:    data,
		},
		{
			name:        "multi range falls back to full file",
			rangeHeader: "bytes=0-1,5-6",
			wantStatus:  http.StatusOK,
			wantBody:    data,
		},
		{
			name:        "wrong unit falls back to full file",
			rangeHeader: "items=0-1",
			wantStatus:  http.StatusOK,
			wantBody:    data,
		},
		{
			name:        "end before start falls back to full file",
			rangeHeader: "bytes=50-10",
			wantStatus:  http.StatusOK,
			wantBody:    data,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/songs/Song_Art.mp3", nil)
			if tt.rangeHeader != "" {
				req.Header.Set("Range", tt.rangeHeader)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Content-Range"); got != tt.contentRange {
				t.Fatalf("expected Content-Range %q, got %q", tt.contentRange, got)
			}
			if rec.Header().Get("Accept-Ranges") != "bytes" {
				t.Fatalf("expected Accept-Ranges bytes, got %q", rec.Header().Get("Accept-Ranges"))
			}
			if tt.wantBody == nil {
				return
			}
			if !bytes.Equal(rec.Body.Bytes(), tt.wantBody) {
				t.Fatalf("expected %d body bytes, got %d", len(tt.wantBody), rec.Body.Len())
			}
			if rec.Header().Get("Content-Type") != "audio/mpeg" {
				t.Fatalf("expected audio/mpeg, got %q", rec.Header().Get("Content-Type"))
			}
			if want := `inline; filename="Song_Art.mp3"`; rec.Header().Get("Content-Disposition") != want {
				t.Fatalf("expected %s, got %q", want, rec.Header().Get("Content-Disposition"))
			}
		})
	}
}

func TestServeSongRejectsEscapes(t *testing.T) {
	h, dir, _ := newSongsHandler(t)
	router := newTestRouter(h)

	// a file next to the songs dir that must never be reachable
	writeFile(t, filepath.Dir(dir), "secret.txt", []byte("secret"))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths := []string{
		"/songs/..%2Fsecret.txt",
		"/songs/%2e%2e",
		"/songs/sub",
		"/songs/missing.mp3",
		"/songs/..%5Csecret.txt",
	}

	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))

			if rec.Code != http.StatusNotFound {
				t.Fatalf("expected 404, got %d", rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Error != "file not found" {
				t.Fatalf("expected file not found error, got %q (%v)", rec.Body.String(), err)
			}
		})
	}
}

func TestListSongs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_song.mp3", []byte("b"))
	writeFile(t, dir, "a_song.mp3", []byte("a"))
	writeFile(t, dir, "...Baby_Britney.mp3", []byte("c"))
	if err := os.MkdirAll(filepath.Join(dir, ".incoming", "abc"), 0o755); err != nil {
		t.Fatal(err)
	}

	h := NewHandler(&fakeRecommender{}, newFakeDB(), dir, 1<<20, zap.NewNop())
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/songs", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body songsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if strings.Join(body.Files, ",") != "...Baby_Britney.mp3,a_song.mp3,b_song.mp3" {
		t.Fatalf("expected sorted visible files, got %v", body.Files)
	}
}

func TestServeSongLeadingDots(t *testing.T) {
	h, dir, _ := newSongsHandler(t)
	writeFile(t, dir, "...Baby_One_More_Time_Britney_Spears.mp3", []byte("oops"))

	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/songs/...Baby_One_More_Time_Britney_Spears.mp3", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "oops" {
		t.Fatalf("expected the file to be served, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestListSongsMissingDir(t *testing.T) {
	h := NewHandler(&fakeRecommender{}, newFakeDB(), filepath.Join(t.TempDir(), "nope"), 1<<20, zap.NewNop())
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/songs", nil))

	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"files":[]}` {
		t.Fatalf("expected empty list, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		size       int64
		start, end int64
		want       rangeResult
	}{
		{"bytes=0-0", 10, 0, 0, rangeSatisfiable},
		{"bytes= 2 - 4", 10, 2, 4, rangeSatisfiable},
		{"bytes=-20", 10, 0, 9, rangeSatisfiable},
		{"bytes=-0", 10, 0, 0, rangeUnsatisfiable},
		{"bytes=0-", 0, 0, 0, rangeUnsatisfiable},
		{"bytes=10-", 10, 0, 0, rangeUnsatisfiable},
		{"bytes=+1-2", 10, 0, 0, rangeMalformed},
		{"bytes=-", 10, 0, 0, rangeMalformed},
		{"bytes=5", 10, 0, 0, rangeMalformed},
		{"", 10, 0, 0, rangeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, got := parseRange(tt.header, tt.size)
			if got != tt.want {
				t.Fatalf("expected result %d, got %d", tt.want, got)
			}
			if got == rangeSatisfiable && (start != tt.start || end != tt.end) {
				t.Fatalf("expected %d-%d, got %d-%d", tt.start, tt.end, start, end)
			}
		})
	}
}
