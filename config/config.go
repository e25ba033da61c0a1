package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"imobiliaria/server/internal/listing"
	"imobiliaria/server/internal/storage"
)

type Config struct {
	Server struct {
		Port string `env:"PORT" envDefault:"3000"`

		// Origins allowed by CORS, "*" allows any
		AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

		LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	}

	Database struct {
		Path string `env:"DB_PATH" envDefault:"database/imobiliaria.db"`
	}

	Listing struct {
		RequireAtLeastOnePhoto  bool   `env:"LISTING_REQUIRE_PHOTO" envDefault:"false"`
		MaxPhotoSlots           int    `env:"LISTING_MAX_PHOTO_SLOTS" envDefault:"10"`
		PhotoMode               string `env:"LISTING_PHOTO_MODE" envDefault:"slots"`
		RequireShortDescription bool   `env:"LISTING_REQUIRE_SHORT_DESCRIPTION" envDefault:"true"`

		// Extra status spellings, e.g. "vendido:Indisponível,ativo:Disponível"
		StatusAliases map[string]string `env:"LISTING_STATUS_ALIASES"`
	}

	Upload struct {
		// One of local, s3, gcs, minio
		Backend           string   `env:"UPLOAD_BACKEND" envDefault:"local"`
		MaxSizeMB         int      `env:"UPLOAD_MAX_SIZE_MB" envDefault:"15"`
		AllowedExtensions []string `env:"UPLOAD_ALLOWED_EXT" envDefault:".jpg,.jpeg,.png" envSeparator:","`
		AllowedMimeTypes  []string `env:"UPLOAD_ALLOWED_MIME" envDefault:"image/jpeg,image/png" envSeparator:","`

		// Object key prefix, keys are <prefix>/<uuid><ext>
		Prefix string `env:"UPLOAD_PREFIX" envDefault:"imobiliaria"`

		LocalDir        string `env:"UPLOAD_LOCAL_DIR" envDefault:"uploads"`
		LocalPublicPath string `env:"UPLOAD_LOCAL_PUBLIC_PATH" envDefault:"/uploads"`

		S3Bucket          string `env:"UPLOAD_S3_BUCKET"`
		S3Region          string `env:"UPLOAD_S3_REGION" envDefault:"auto"`
		S3Endpoint        string `env:"UPLOAD_S3_ENDPOINT"`
		S3AccessKeyID     string `env:"UPLOAD_S3_ACCESS_KEY_ID"`
		S3SecretAccessKey string `env:"UPLOAD_S3_SECRET_ACCESS_KEY"`
		S3PublicBaseURL   string `env:"UPLOAD_S3_PUBLIC_BASE_URL"`
		S3UsePathStyle    bool   `env:"UPLOAD_S3_PATH_STYLE" envDefault:"true"`

		GCSBucket          string `env:"UPLOAD_GCS_BUCKET"`
		GCSCredentialsFile string `env:"UPLOAD_GCS_CREDENTIALS_FILE"`
		GCSPublicBaseURL   string `env:"UPLOAD_GCS_PUBLIC_BASE_URL"`

		MinIOEndpoint      string `env:"UPLOAD_MINIO_ENDPOINT"`
		MinIOAccessKey     string `env:"UPLOAD_MINIO_ACCESS_KEY"`
		MinIOSecretKey     string `env:"UPLOAD_MINIO_SECRET_KEY"`
		MinIOBucket        string `env:"UPLOAD_MINIO_BUCKET"`
		MinIOUseSSL        bool   `env:"UPLOAD_MINIO_USE_SSL" envDefault:"false"`
		MinIOPublicBaseURL string `env:"UPLOAD_MINIO_PUBLIC_BASE_URL"`
	}

	Redis struct {
		// Empty disables the listing cache
		Addr string        `env:"REDIS_ADDR"`
		TTL  time.Duration `env:"REDIS_TTL" envDefault:"1h"`
	}

	NATS struct {
		// Empty disables event publishing
		URL           string `env:"NATS_URL"`
		SubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"listings"`
	}

	// BatchProcessing configures the orphan sweep
	BatchProcessing struct {
		// Maximum number of orphans per batch
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"100"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`
	}
}

// LoadConfig reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// ListingOptions builds the normalizer options. Configured status aliases are
// added to the defaults and must name a known status.
func (c *Config) ListingOptions() (listing.Options, error) {
	opts := listing.DefaultOptions()
	opts.RequireAtLeastOnePhoto = c.Listing.RequireAtLeastOnePhoto
	opts.MaxPhotoSlots = c.Listing.MaxPhotoSlots
	opts.PhotoMode = listing.PhotoMode(c.Listing.PhotoMode)
	opts.RequireShortDescription = c.Listing.RequireShortDescription

	for alias, target := range c.Listing.StatusAliases {
		status, err := listing.ParseStatus(target)
		if err != nil {
			return listing.Options{}, fmt.Errorf("invalid LISTING_STATUS_ALIASES entry %q: %w", alias, err)
		}
		opts.StatusAliases[alias] = status
	}

	if err := opts.Validate(); err != nil {
		return listing.Options{}, fmt.Errorf("invalid listing configuration: %w", err)
	}
	return opts, nil
}

func (c *Config) UploadLimits() storage.UploadLimits {
	return storage.UploadLimits{
		MaxSizeMB:         c.Upload.MaxSizeMB,
		AllowedExtensions: c.Upload.AllowedExtensions,
		AllowedMimeTypes:  c.Upload.AllowedMimeTypes,
	}
}

func (c *Config) StorageConfig() storage.Config {
	u := c.Upload
	return storage.Config{
		Backend: u.Backend,
		Prefix:  u.Prefix,
		Local: storage.LocalConfig{
			Dir:        u.LocalDir,
			PublicPath: u.LocalPublicPath,
		},
		S3: storage.S3Config{
			Bucket:          u.S3Bucket,
			Region:          u.S3Region,
			Endpoint:        u.S3Endpoint,
			AccessKeyID:     u.S3AccessKeyID,
			SecretAccessKey: u.S3SecretAccessKey,
			PublicBaseURL:   u.S3PublicBaseURL,
			UsePathStyle:    u.S3UsePathStyle,
		},
		GCS: storage.GCSConfig{
			Bucket:          u.GCSBucket,
			CredentialsFile: u.GCSCredentialsFile,
			PublicBaseURL:   u.GCSPublicBaseURL,
		},
		MinIO: storage.MinIOConfig{
			Endpoint:      u.MinIOEndpoint,
			AccessKey:     u.MinIOAccessKey,
			SecretKey:     u.MinIOSecretKey,
			Bucket:        u.MinIOBucket,
			UseSSL:        u.MinIOUseSSL,
			PublicBaseURL: u.MinIOPublicBaseURL,
		},
	}
}
