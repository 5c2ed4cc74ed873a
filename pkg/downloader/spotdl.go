package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// outputTail bounds how much of the tool's output ends up in error messages.
const outputTail = 512

// Spotdl downloads a catalog track through the spotdl CLI.
type Spotdl struct {
	path    string
	format  string
	timeout time.Duration
	log     *zap.Logger
}

func NewSpotdl(path, format string, timeout time.Duration, log *zap.Logger) *Spotdl {
	return &Spotdl{
		path:    path,
		format:  format,
		timeout: timeout,
		log:     log,
	}
}

// Available reports whether the spotdl binary can be resolved.
func (s *Spotdl) Available() error {
	if _, err := exec.LookPath(s.path); err != nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, s.path)
	}
	return nil
}

// Fetch downloads trackURL and leaves the audio file at dest.
// The tool writes into a private directory next to dest, so a failed run never touches dest.
func (s *Spotdl) Fetch(ctx context.Context, trackURL, dest string) error {
	workDir, err := os.MkdirTemp(filepath.Dir(dest), ".spotdl-")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	args := []string{
		"download", trackURL,
		"--output", filepath.Join(workDir, "{track-id}.{output-ext}"),
		"--format", s.format,
	}

	cmd := exec.CommandContext(ctx, s.path, args...)
	cmd.WaitDelay = time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err = cmd.Run()
	if err != nil {
		return s.classify(ctx, err, output.Bytes())
	}

	produced, err := findAudio(workDir, s.format)
	if err != nil {
		return err
	}

	if err := os.Rename(produced, dest); err != nil {
		return fmt.Errorf("failed to move downloaded file: %w", err)
	}

	s.log.Info("Downloaded track",
		zap.String("url", trackURL),
		zap.String("dest", dest),
		zap.Duration("took", time.Since(start)))

	return nil
}

func (s *Spotdl) classify(ctx context.Context, err error, output []byte) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrDownloadTimeout, s.timeout)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: exit code %d: %s", ErrDownloadFailed, exitErr.ExitCode(), tail(output))
	}

	// not found, not executable or otherwise unable to start
	return fmt.Errorf("%w: %s: %v", ErrToolNotFound, s.path, err)
}

func findAudio(dir, format string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read work dir: %w", err)
	}

	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), "."+format) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("%w: no .%s file produced", ErrDownloadFailed, format)
}

func tail(output []byte) string {
	out := strings.TrimSpace(string(output))
	if len(out) > outputTail {
		out = "..." + out[len(out)-outputTail:]
	}
	return out
}
