package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/disk"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/service"
	"go.uber.org/zap"
)

const secondaryText = "Welcome to the mood player API! This is not something you can use as a website. " +
	"POST a photo to / and let the code do the rest."

type Handler interface {
	Recommend(w http.ResponseWriter, r *http.Request)
	ListSongs(w http.ResponseWriter, r *http.Request)
	ServeSong(w http.ResponseWriter, r *http.Request)
	Secondary(w http.ResponseWriter, r *http.Request)
	Health(w http.ResponseWriter, r *http.Request)
	Ready(w http.ResponseWriter, r *http.Request)
	Stats(w http.ResponseWriter, r *http.Request)
}

type Recommender interface {
	Recommend(ctx context.Context, photo io.Reader) (*service.Result, error)
}

type HandlerDB interface {
	CountSavedSongs(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

type handler struct {
	recommender    Recommender
	db             HandlerDB
	songsDir       string
	maxUploadBytes int64
	log            *zap.Logger
	diskUsageFn    func(ctx context.Context, path string) (*disk.UsageStat, error)
}

func NewHandler(recommender Recommender, db HandlerDB, songsDir string, maxUploadBytes int64, log *zap.Logger) Handler {
	return &handler{
		recommender:    recommender,
		db:             db,
		songsDir:       songsDir,
		maxUploadBytes: maxUploadBytes,
		log:            log,
		diskUsageFn:    disk.UsageWithContext,
	}
}

func (h *handler) Recommend(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(zap.String("request_id", RequestID(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "photo is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	photo, _, err := r.FormFile("photo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "photo file is required")
		return
	}
	defer photo.Close()

	res, err := h.recommender.Recommend(r.Context(), photo)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error("Failed to recommend track", zap.Error(err))
		} else {
			log.Info("Recommendation rejected", zap.Int("status", status), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	if r.Header.Get("X-Return-Audio") == "1" {
		if _, err := os.Stat(res.FilePath); err == nil {
			h.setTrackHeaders(w, res)
			h.serveFile(w, r, res.FilePath, res.FileName)
			return
		}
		log.Warn("Audio requested but file is missing, answering with JSON", zap.String("path", res.FilePath))
	}

	writeJSON(w, http.StatusOK, newRecommendResponse(res))
}

func (h *handler) setTrackHeaders(w http.ResponseWriter, res *service.Result) {
	resp := newRecommendResponse(res)
	w.Header().Set("X-Track-Title", resp.Track.Name)
	w.Header().Set("X-Track-Artist", resp.Track.Artist)
	w.Header().Set("X-Track-Album", resp.Track.Album)
	w.Header().Set("X-Track-Cover", resp.Track.CoverURL)
}

func (h *handler) Secondary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(secondaryText))
}

func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.Warn("Readiness check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}

func (h *handler) Stats(w http.ResponseWriter, r *http.Request) {
	saved, err := h.db.CountSavedSongs(r.Context())
	if err != nil {
		h.log.Error("Failed to get stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}

	files, err := h.listAudioFiles()
	if err != nil {
		h.log.Error("Failed to list songs for stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}

	stats := statsResponse{
		SavedSongs: saved,
		AudioFiles: len(files),
	}

	dir, err := filepath.Abs(h.songsDir)
	if err == nil {
		if usage, err := h.diskUsageFn(r.Context(), dir); err == nil {
			stats.DiskTotal = usage.Total
			stats.DiskFree = usage.Free
			stats.DiskUsedRatio = usage.UsedPercent
		} else {
			h.log.Debug("Failed to read disk usage", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, stats)
}
