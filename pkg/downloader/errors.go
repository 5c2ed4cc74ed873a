package downloader

import "errors"

var (
	ErrToolNotFound         = errors.New("downloader tool not found")
	ErrDownloadFailed       = errors.New("download failed")
	ErrDownloadTimeout      = errors.New("download timed out")
	ErrValidatorUnavailable = errors.New("audio validator not available")
	ErrInvalidAudio         = errors.New("invalid audio file")
)
