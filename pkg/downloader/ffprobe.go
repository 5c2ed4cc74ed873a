package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// FFProbe validates audio files by asking ffprobe for the container duration.
type FFProbe struct {
	path    string
	timeout time.Duration
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func NewFFProbe(path string, timeout time.Duration) *FFProbe {
	return &FFProbe{path: path, timeout: timeout}
}

func (p *FFProbe) Available() error {
	if _, err := exec.LookPath(p.path); err != nil {
		return fmt.Errorf("%w: %s", ErrValidatorUnavailable, p.path)
	}
	return nil
}

// Validate returns the playable duration of the file at path. A zero duration is returned
// without error; callers decide whether that is acceptable.
func (p *FFProbe) Validate(ctx context.Context, path string) (time.Duration, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %s timed out after %s", ErrValidatorUnavailable, p.path, p.timeout)
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return 0, fmt.Errorf("%w: %s", ErrInvalidAudio, tail(stderr.Bytes()))
		}
		// not found, not executable or otherwise unable to start
		return 0, fmt.Errorf("%w: %s: %v", ErrValidatorUnavailable, p.path, err)
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return 0, fmt.Errorf("%w: failed to parse ffprobe output: %v", ErrInvalidAudio, err)
	}

	// ffprobe reports "N/A" for streams it cannot time
	if out.Format.Duration == "" || out.Format.Duration == "N/A" {
		return 0, nil
	}

	seconds, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad duration %q", ErrInvalidAudio, out.Format.Duration)
	}
	if seconds < 0 {
		return 0, nil
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
