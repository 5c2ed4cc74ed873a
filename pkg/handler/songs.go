package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/utils"
	"go.uber.org/zap"
)

type rangeResult int

const (
	rangeMalformed rangeResult = iota
	rangeSatisfiable
	rangeUnsatisfiable
)

func (h *handler) ListSongs(w http.ResponseWriter, r *http.Request) {
	files, err := h.listAudioFiles()
	if err != nil {
		h.log.Error("Failed to list songs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list songs")
		return
	}

	writeJSON(w, http.StatusOK, songsResponse{Files: files})
}

// listAudioFiles returns the names of regular files in the songs dir, sorted.
// Directories, the staging area among them, are skipped.
func (h *handler) listAudioFiles() ([]string, error) {
	files := []string{}

	entries, err := os.ReadDir(h.songsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return files, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, entry.Name())
	}

	return files, nil
}

func (h *handler) ServeSong(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	path, ok := h.resolveSong(name)
	if !ok {
		h.log.Warn("Rejected song path", zap.String("name", name))
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	h.serveFile(w, r, path, name)
}

// resolveSong maps a requested name to a path directly inside the songs dir.
func (h *handler) resolveSong(name string) (string, bool) {
	// sanitized names may legitimately start with dots ("...Baby_One_More_Time")
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return "", false
	}

	root, err := filepath.Abs(h.songsDir)
	if err != nil {
		return "", false
	}
	path := filepath.Join(root, name)

	rel, err := filepath.Rel(root, path)
	if err != nil || rel != name {
		return "", false
	}

	return path, true
}

func (h *handler) serveFile(w http.ResponseWriter, r *http.Request, path, name string) {
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			h.log.Error("Failed to open song", zap.String("path", path), zap.Error(err))
		}
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	size := info.Size()

	w.Header().Set("Accept-Ranges", "bytes")

	var start, end int64
	result := rangeMalformed
	if header := r.Header.Get("Range"); header != "" {
		start, end, result = parseRange(header, size)
	}

	if result == rangeUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "Range start out of bounds")
		return
	}

	w.Header().Set("Content-Type", utils.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))

	var body io.Reader = f
	status := http.StatusOK
	length := size

	if result == rangeSatisfiable {
		length = end - start + 1
		body = io.NewSectionReader(f, start, length)
		status = http.StatusPartialContent
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}

	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(status)

	if _, err := io.CopyN(w, body, length); err != nil {
		h.log.Debug("Song stream interrupted", zap.String("name", name), zap.Error(err))
	}
}

// parseRange understands a single "bytes=start-end" range where either bound may be omitted.
// Anything else is reported as malformed and callers fall back to the whole file.
func parseRange(header string, size int64) (int64, int64, rangeResult) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, rangeMalformed
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, rangeMalformed
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)

	if startStr == "" {
		suffix, ok := parseOffset(endStr)
		if !ok {
			return 0, 0, rangeMalformed
		}
		if suffix == 0 || size == 0 {
			return 0, 0, rangeUnsatisfiable
		}
		if suffix > size {
			suffix = size
		}
		return size - suffix, size - 1, rangeSatisfiable
	}

	start, ok := parseOffset(startStr)
	if !ok {
		return 0, 0, rangeMalformed
	}

	end := size - 1
	if endStr != "" {
		end, ok = parseOffset(endStr)
		if !ok || end < start {
			return 0, 0, rangeMalformed
		}
	}

	if start >= size {
		return 0, 0, rangeUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}

	return start, end, rangeSatisfiable
}

func parseOffset(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, false
	}
	return int64(n), true
}
