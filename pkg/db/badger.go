package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
	"go.uber.org/zap"
)

const savedSongKeyPrefix = "saved_song:"

type badgerDB struct {
	conn *badger.DB
	log  *zap.Logger
}

// NewBadgerDatabase opens an embedded store at path. An empty path keeps everything in memory.
func NewBadgerDatabase(log *zap.Logger, path string) (Database, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	conn, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &badgerDB{conn: conn, log: log}, nil
}

func (d *badgerDB) Close(context.Context) error {
	return d.conn.Close()
}

func (d *badgerDB) Ping(context.Context) error {
	if d.conn.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

func (d *badgerDB) GetSavedSong(_ context.Context, id string) (models.SavedSong, error) {
	var song models.SavedSong

	err := d.conn.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(savedSongKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get saved song: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &song)
		})
	})
	if err != nil {
		return models.SavedSong{}, err
	}

	return song, nil
}

func (d *badgerDB) SaveSong(_ context.Context, song models.SavedSong) error {
	if song.ID == "" {
		return errors.New("saved song id is empty")
	}

	data, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("failed to marshal saved song: %w", err)
	}

	return d.conn.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(savedSongKeyPrefix+song.ID), data); err != nil {
			return fmt.Errorf("failed to set saved song: %w", err)
		}
		return nil
	})
}

func (d *badgerDB) CountSavedSongs(context.Context) (int64, error) {
	var count int64

	err := d.conn.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(savedSongKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count saved songs: %w", err)
	}

	return count, nil
}
