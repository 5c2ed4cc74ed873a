package utils

import (
	"path/filepath"
	"strings"

	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
)

// SanitizeFilename replaces every rune outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafeRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}

func JoinArtists(artists []string) string {
	return strings.Join(artists, ", ")
}

// TrackFileName builds the on-disk name for a track's audio file, e.g. "Song_Art.mp3".
func TrackFileName(track models.Track, format string) string {
	return SanitizeFilename(track.Name + "_" + JoinArtists(track.Artists) + "." + format)
}

func ContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
