package config

import (
	"fmt"

	"github.com/caarlos0/env/v9"
	"github.com/docker/go-units"
	"github.com/joho/godotenv"

	"github.com/bulatminnakhmetov/canvas2image/internal/database"
	storagemedia "github.com/bulatminnakhmetov/canvas2image/internal/storage/media"
)

type Config struct {
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty  bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Empty disables bearer auth on the API routes
	JWTSecret string `env:"JWT_SECRET"`

	// Ask the token for storage_write before HTTP saves
	StorageRequirePermission bool `env:"STORAGE_REQUIRE_PERMISSION" envDefault:"false"`

	// Human readable, e.g. "20MB"
	MaxPayloadSize string `env:"MAX_PAYLOAD_SIZE" envDefault:"20MB"`

	Media MediaConfig `envPrefix:"MEDIA_"`
	Minio MinioConfig `envPrefix:"MINIO_"`
	DB    DBConfig    `envPrefix:"DB_"`
}

type MediaConfig struct {
	Backend string `env:"BACKEND" envDefault:"filesystem"`
	Root    string `env:"ROOT" envDefault:"./data/media"`
}

type MinioConfig struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"media"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	PublicURL string `env:"PUBLIC_URL"`
}

// DBConfig points at the media index. An empty host runs without one.
type DBConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"canvas2image"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.MaxPayloadBytes(); err != nil {
		return err
	}
	switch c.Media.Backend {
	case storagemedia.BackendFilesystem, storagemedia.BackendMinio:
	default:
		return fmt.Errorf("invalid MEDIA_BACKEND %q", c.Media.Backend)
	}
	return nil
}

// MaxPayloadBytes parses MaxPayloadSize.
func (c *Config) MaxPayloadBytes() (int64, error) {
	size, err := units.FromHumanSize(c.MaxPayloadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_PAYLOAD_SIZE %q: %w", c.MaxPayloadSize, err)
	}
	if size <= 0 {
		return 0, fmt.Errorf("invalid MAX_PAYLOAD_SIZE %q: must be positive", c.MaxPayloadSize)
	}
	return size, nil
}

func (c *Config) IndexEnabled() bool {
	return c.DB.Host != ""
}

func (c *Config) Database() *database.Config {
	return &database.Config{
		Host:     c.DB.Host,
		Port:     c.DB.Port,
		User:     c.DB.User,
		Password: c.DB.Password,
		DBName:   c.DB.Name,
		SSLMode:  c.DB.SSLMode,
	}
}

func (c *Config) MediaStore() storagemedia.Config {
	return storagemedia.Config{
		Backend: c.Media.Backend,
		Root:    c.Media.Root,
		Minio: storagemedia.MinioConfig{
			Endpoint:  c.Minio.Endpoint,
			AccessKey: c.Minio.AccessKey,
			SecretKey: c.Minio.SecretKey,
			Bucket:    c.Minio.Bucket,
			UseSSL:    c.Minio.UseSSL,
			PublicURL: c.Minio.PublicURL,
		},
	}
}
