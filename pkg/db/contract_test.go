package db

import (
	"context"
	"errors"
	"testing"

	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
)

// runDatabaseContract checks the behaviour every backend must share.
func runDatabaseContract(t *testing.T, d Database) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		_, err := d.GetSavedSong(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("put then get returns equal record", func(t *testing.T) {
		song := models.SavedSong{
			ID:          "T1",
			Name:        "Song",
			Artist:      "Art, Other",
			SearchQuery: "happy",
			FileName:    "Song_Art__Other.mp3",
			CreatedAt:   1700000000,
		}
		if err := d.SaveSong(ctx, song); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := d.GetSavedSong(ctx, "T1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != song {
			t.Fatalf("expected %+v, got %+v", song, got)
		}
	})

	t.Run("put twice replaces instead of duplicating", func(t *testing.T) {
		first := models.SavedSong{ID: "T2", Name: "First", Artist: "A", SearchQuery: "sad"}
		second := models.SavedSong{ID: "T2", Name: "Second", Artist: "B", SearchQuery: "angry"}

		before, err := d.CountSavedSongs(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := d.SaveSong(ctx, first); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := d.SaveSong(ctx, second); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		after, err := d.CountSavedSongs(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if after-before != 1 {
			t.Fatalf("expected exactly one new record, got %d", after-before)
		}

		got, err := d.GetSavedSong(ctx, "T2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != second {
			t.Fatalf("expected replacement %+v, got %+v", second, got)
		}
	})

	t.Run("empty id is rejected", func(t *testing.T) {
		if err := d.SaveSong(ctx, models.SavedSong{Name: "x"}); err == nil {
			t.Fatal("expected error for empty id")
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := d.Ping(ctx); err != nil {
			t.Fatalf("unexpected ping error: %v", err)
		}
	})
}
