package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	CacheBackendBadger = "badger"
	CacheBackendMongo  = "mongo"
)

type Config struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8080"`
	PublicURL  string `envconfig:"PUBLIC_URL"`
	SongsDir   string `envconfig:"SONGS_DIR" default:"./songs"`
	Debug      bool   `envconfig:"DEBUG" default:"false"`

	CacheBackend string `envconfig:"CACHE_BACKEND" default:"badger"`
	BadgerPath   string `envconfig:"BADGER_PATH" default:"./songs.db"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DatabaseName string `envconfig:"DATABASE_NAME"`

	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID" required:"true"`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET" required:"true"`

	NgrokAuthToken string `envconfig:"NGROK_AUTHTOKEN" required:"true"`

	ClassifierURL     string        `envconfig:"CLASSIFIER_URL" default:"http://localhost:5005"`
	ClassifierTimeout time.Duration `envconfig:"CLASSIFIER_TIMEOUT" default:"30s"`

	SpotdlPath      string        `envconfig:"SPOTDL_PATH" default:"spotdl"`
	FFProbePath     string        `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	FFProbeTimeout  time.Duration `envconfig:"FFPROBE_TIMEOUT" default:"1m"`
	DownloadFormat  string        `envconfig:"DOWNLOAD_FORMAT" default:"mp3"`
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"10m"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RateLimitRequests  int      `envconfig:"RATE_LIMIT_REQUESTS" default:"30"`
	MaxUploadBytes     int64    `envconfig:"MAX_UPLOAD_BYTES" default:"20971520"`
}

// NewConfig loads .env (when present) into the environment and then reads the config from it.
func NewConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := new(Config)
	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SpotifyClientID == "" || c.SpotifyClientSecret == "" {
		return errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must not be empty")
	}
	if c.NgrokAuthToken == "" {
		return errors.New("NGROK_AUTHTOKEN must not be empty")
	}

	switch c.CacheBackend {
	case CacheBackendBadger:
		if c.BadgerPath == "" {
			return errors.New("BADGER_PATH is required for the badger cache backend")
		}
	case CacheBackendMongo:
		if c.DatabaseURL == "" || c.DatabaseName == "" {
			return errors.New("DATABASE_URL and DATABASE_NAME are required for the mongo cache backend")
		}
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q (supported: badger, mongo)", c.CacheBackend)
	}

	switch strings.ToLower(c.DownloadFormat) {
	case "mp3", "flac", "m4a":
		c.DownloadFormat = strings.ToLower(c.DownloadFormat)
	default:
		return fmt.Errorf("unsupported DOWNLOAD_FORMAT %q (supported: mp3, flac, m4a)", c.DownloadFormat)
	}

	if c.RateLimitRequests <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.FFProbeTimeout <= 0 {
		return errors.New("FFPROBE_TIMEOUT must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}

	c.PublicURL = strings.TrimRight(c.PublicURL, "/")

	return nil
}
