package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/supperdoggy/SmartHomeServer/harmoniq-maestro/mood-player/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("saved song not found")

// Database is the dedup index of downloaded tracks. It only ever grows.
type Database interface {
	GetSavedSong(ctx context.Context, id string) (models.SavedSong, error)
	SaveSong(ctx context.Context, song models.SavedSong) error
	CountSavedSongs(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
}

type db struct {
	conn *mongo.Client
	log  *zap.Logger

	savedSongsCollection *mongo.Collection
	dbname               string
}

func NewDatabase(ctx context.Context, log *zap.Logger, url, dbname string) (Database, error) {
	conn, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection
	if err := conn.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &db{
		conn:   conn,
		log:    log,
		dbname: dbname,

		savedSongsCollection: conn.Database(dbname).Collection("saved-songs"),
	}, nil
}

func (d *db) Close(ctx context.Context) error {
	return d.conn.Disconnect(ctx)
}

func (d *db) Ping(ctx context.Context) error {
	return d.conn.Ping(ctx, nil)
}

func (d *db) GetSavedSong(ctx context.Context, id string) (models.SavedSong, error) {
	var song models.SavedSong
	err := d.savedSongsCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&song)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.SavedSong{}, ErrNotFound
	}
	if err != nil {
		return models.SavedSong{}, fmt.Errorf("failed to find saved song: %w", err)
	}

	return song, nil
}

func (d *db) SaveSong(ctx context.Context, song models.SavedSong) error {
	if song.ID == "" {
		return errors.New("saved song id is empty")
	}

	_, err := d.savedSongsCollection.ReplaceOne(
		ctx,
		bson.M{"_id": song.ID},
		song,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert saved song: %w", err)
	}

	return nil
}

func (d *db) CountSavedSongs(ctx context.Context) (int64, error) {
	count, err := d.savedSongsCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count saved songs: %w", err)
	}

	return count, nil
}
