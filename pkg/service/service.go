package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/gofrs/uuid"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/db"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/downloader"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/emotion"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/metrics"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	playlistSearchLimit = 10
	playlistTrackLimit  = 100

	// StagingDirName is the directory under the songs dir where downloads are assembled.
	StagingDirName = ".incoming"

	headSize = 128
)

type ServiceDB interface {
	GetSavedSong(ctx context.Context, id string) (models.SavedSong, error)
	SaveSong(ctx context.Context, song models.SavedSong) error
}

type Classifier interface {
	Classify(ctx context.Context, img image.Image) (string, error)
}

type Catalog interface {
	SearchPlaylists(ctx context.Context, query string, limit int) ([]models.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string, limit int) ([]models.Track, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, trackURL, dest string) error
}

type Validator interface {
	Validate(ctx context.Context, path string) (time.Duration, error)
}

type Tagger interface {
	Tag(path string, track models.Track) error
}

type Options struct {
	SongsDir string
	Format   string
	// BaseURL is the public origin used in file URLs, without a trailing slash.
	BaseURL string
}

type Service struct {
	db         ServiceDB
	classifier Classifier
	catalog    Catalog
	fetcher    Fetcher
	validator  Validator
	tagger     Tagger
	log        *zap.Logger

	songsDir string
	format   string
	baseURL  string

	downloads singleflight.Group
	pick      func(n int) int
}

// Result is everything the HTTP layer needs to answer a recommendation.
type Result struct {
	Emotion  string
	Track    models.Track
	CacheHit bool

	SavedMsg    string
	DownloadMsg string

	FileName string
	FilePath string
	FileURL  string

	// diagnostics, zero when the file could not be read
	FileMime    string
	FileSize    int64
	FileHeadB64 string
	FileType    string
}

type downloadOutcome struct {
	cacheHit    bool
	savedMsg    string
	downloadMsg string
}

func NewService(
	db ServiceDB,
	classifier Classifier,
	catalog Catalog,
	fetcher Fetcher,
	validator Validator,
	tagger Tagger,
	opts Options,
	log *zap.Logger,
) *Service {
	return &Service{
		db:         db,
		classifier: classifier,
		catalog:    catalog,
		fetcher:    fetcher,
		validator:  validator,
		tagger:     tagger,
		log:        log,
		songsDir:   opts.SongsDir,
		format:     opts.Format,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		pick:       rand.IntN,
	}
}

// Recommend turns a photo into a locally cached track matching the mood on it.
// Returned errors are always *Error.
func (s *Service) Recommend(ctx context.Context, photo io.Reader) (*Result, error) {
	start := time.Now()

	res, err := s.recommend(ctx, photo)

	outcome := "downloaded"
	switch {
	case err != nil:
		outcome = KindOf(err).String()
	case res.CacheHit:
		outcome = "cache_hit"
	}
	metrics.RecordRecommendation(outcome, time.Since(start))

	return res, err
}

func (s *Service) recommend(ctx context.Context, photo io.Reader) (*Result, error) {
	img, err := emotion.DecodeImage(photo)
	if err != nil {
		return nil, newError(KindInput, "invalid photo", err)
	}

	label, err := s.classifier.Classify(ctx, img)
	if err != nil {
		return nil, newError(KindClassification, "Error detecting emotion", err)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, newError(KindClassification, "Error detecting emotion: no emotion returned", nil)
	}
	metrics.RecordEmotion(label)

	log := s.log.With(zap.String("emotion", label))

	playlists, err := s.catalog.SearchPlaylists(ctx, label, playlistSearchLimit)
	if err != nil {
		return nil, newError(KindCatalog, "failed to search playlists", err)
	}
	if len(playlists) == 0 {
		return nil, newError(KindNotFound, "No playlists found for the search query.", nil)
	}
	playlist := playlists[s.pick(len(playlists))]

	tracks, err := s.catalog.PlaylistTracks(ctx, playlist.ID, playlistTrackLimit)
	if err != nil {
		return nil, newError(KindCatalog, "failed to get playlist tracks", err)
	}
	if len(tracks) == 0 {
		return nil, newError(KindNotFound, "No tracks found in the selected playlist.", nil)
	}
	track := tracks[s.pick(len(tracks))]

	log = log.With(zap.String("playlist_id", playlist.ID), zap.String("track_id", track.ID))

	fileName := utils.TrackFileName(track, s.format)
	res := &Result{
		Emotion:  label,
		Track:    track,
		FileName: fileName,
		FilePath: filepath.Join(s.songsDir, fileName),
		FileURL:  s.baseURL + "/songs/" + url.PathEscape(fileName),
	}

	if s.isCached(ctx, log, track.ID, res.FilePath) {
		res.CacheHit = true
		res.SavedMsg = "Song already exists in database."
		res.DownloadMsg = "Skipping download since the song is already saved."
	} else {
		// A client hanging up must not abort a download other requests may be waiting on.
		dlCtx := context.WithoutCancel(ctx)
		v, err, shared := s.downloads.Do(track.ID, func() (interface{}, error) {
			return s.download(dlCtx, log, track, label, fileName, res.FilePath)
		})
		if err != nil {
			return nil, err
		}
		if shared {
			log.Debug("Joined in-flight download")
		}

		out := v.(downloadOutcome)
		res.CacheHit = out.cacheHit
		res.SavedMsg = out.savedMsg
		res.DownloadMsg = out.downloadMsg
	}

	s.describeFile(log, res)

	log.Info("Recommended track",
		zap.String("track", track.Name),
		zap.Bool("cache_hit", res.CacheHit),
		zap.String("file", fileName))

	return res, nil
}

// isCached reports whether the track has a record and its audio file is still on disk.
func (s *Service) isCached(ctx context.Context, log *zap.Logger, trackID, filePath string) bool {
	if _, err := s.db.GetSavedSong(ctx, trackID); err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Warn("Failed to look up saved song, treating as miss", zap.Error(err))
		}
		return false
	}

	if _, err := os.Stat(filePath); err != nil {
		log.Warn("Saved song has no audio file, downloading again", zap.String("path", filePath), zap.Error(err))
		return false
	}

	return true
}

func (s *Service) download(ctx context.Context, log *zap.Logger, track models.Track, query, fileName, filePath string) (downloadOutcome, error) {
	// another request may have finished this track while we waited for the key
	if s.isCached(ctx, log, track.ID, filePath) {
		return downloadOutcome{
			cacheHit:    true,
			savedMsg:    "Song already exists in database.",
			downloadMsg: "Skipping download since the song is already saved.",
		}, nil
	}

	start := time.Now()

	id, err := uuid.NewV4()
	if err != nil {
		return downloadOutcome{}, newError(KindStorage, "failed to generate staging id", err)
	}

	stagingDir := filepath.Join(s.songsDir, StagingDirName, id.String())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return downloadOutcome{}, newError(KindStorage, "failed to create staging dir", err)
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			log.Warn("Failed to remove staging dir", zap.String("dir", stagingDir), zap.Error(err))
		}
	}()

	staging := filepath.Join(stagingDir, fileName)

	log.Info("Downloading track", zap.String("url", track.URL))
	if err := s.fetcher.Fetch(ctx, track.URL, staging); err != nil {
		switch {
		case errors.Is(err, downloader.ErrToolNotFound):
			metrics.RecordDownload("unavailable", time.Since(start))
			return downloadOutcome{}, newError(KindEnvironment, "Error: 'spotdl' command not found. Ensure spotDL is installed and accessible.", err)
		case errors.Is(err, downloader.ErrDownloadTimeout):
			metrics.RecordDownload("timeout", time.Since(start))
		default:
			metrics.RecordDownload("failed", time.Since(start))
		}
		return downloadOutcome{}, newError(KindDownload, fmt.Sprintf("Error downloading %s", track.URL), err)
	}

	duration, err := s.validator.Validate(ctx, staging)
	if err != nil {
		if errors.Is(err, downloader.ErrValidatorUnavailable) {
			metrics.RecordDownload("unavailable", time.Since(start))
			return downloadOutcome{}, newError(KindEnvironment, "Server-side validation unavailable: ffprobe could not be run", err)
		}
		s.discard(log, staging)
		metrics.RecordDownload("invalid", time.Since(start))
		return downloadOutcome{}, newError(KindValidation, "Downloaded file is not valid audio", err)
	}
	if duration <= 0 {
		s.discard(log, staging)
		metrics.RecordDownload("invalid", time.Since(start))
		return downloadOutcome{}, newError(KindValidation, "Downloaded file is not valid audio", errors.New("duration is zero"))
	}

	if err := s.tagger.Tag(staging, track); err != nil {
		log.Warn("Failed to tag downloaded file", zap.Error(err))
	}

	if err := os.Rename(staging, filePath); err != nil {
		return downloadOutcome{}, newError(KindStorage, "failed to move downloaded file", err)
	}
	metrics.RecordDownload("success", time.Since(start))

	out := downloadOutcome{
		downloadMsg: fmt.Sprintf("Successfully downloaded %s in %s format.", track.URL, s.format),
	}

	record := models.SavedSong{
		ID:          track.ID,
		Name:        track.Name,
		Artist:      utils.JoinArtists(track.Artists),
		SearchQuery: query,
		FileName:    fileName,
		CreatedAt:   time.Now().Unix(),
	}
	if err := s.db.SaveSong(ctx, record); err != nil {
		// the file is usable; the next miss will download it again and retry the write
		log.Error("Failed to save song", zap.Error(newError(KindStorage, "failed to save song", err)))
		return out, nil
	}

	out.savedMsg = "Song saved to database."
	log.Info("Saved song", zap.String("file", fileName), zap.Duration("duration", duration))

	return out, nil
}

func (s *Service) discard(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to remove invalid download", zap.String("path", path), zap.Error(err))
	}
}

// describeFile fills the diagnostic fields from the file on disk. Failures only leave them empty.
func (s *Service) describeFile(log *zap.Logger, res *Result) {
	info, err := os.Stat(res.FilePath)
	if err != nil {
		return
	}
	res.FileSize = info.Size()
	res.FileMime = utils.ContentType(res.FileName)

	f, err := os.Open(res.FilePath)
	if err != nil {
		log.Warn("Failed to open file for diagnostics", zap.Error(err))
		return
	}
	defer f.Close()

	head := make([]byte, headSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		log.Warn("Failed to read file head", zap.Error(err))
		return
	}
	res.FileHeadB64 = base64.StdEncoding.EncodeToString(head[:n])

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return
	}
	if _, fileType, err := tag.Identify(f); err == nil {
		res.FileType = string(fileType)
	}
}
