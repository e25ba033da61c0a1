package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imobiliaria/server/internal/listing"
	"imobiliaria/server/internal/storage"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Listing.MaxPhotoSlots)
	assert.Equal(t, "slots", cfg.Listing.PhotoMode)
	assert.True(t, cfg.Listing.RequireShortDescription)
	assert.Equal(t, "local", cfg.Upload.Backend)
	assert.Equal(t, 15, cfg.Upload.MaxSizeMB)
	assert.Equal(t, []string{".jpg", ".jpeg", ".png"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 3, cfg.BatchProcessing.MaxRetries)

	opts, err := cfg.ListingOptions()
	require.NoError(t, err)
	assert.Equal(t, listing.DefaultOptions(), opts)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("LISTING_REQUIRE_PHOTO", "true")
	t.Setenv("LISTING_MAX_PHOTO_SLOTS", "4")
	t.Setenv("LISTING_PHOTO_MODE", "array")
	t.Setenv("LISTING_STATUS_ALIASES", "vendido:indisponivel,ativo:Disponível")
	t.Setenv("UPLOAD_BACKEND", "s3")
	t.Setenv("UPLOAD_S3_BUCKET", "photos")
	t.Setenv("REDIS_TTL", "5m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)

	opts, err := cfg.ListingOptions()
	require.NoError(t, err)
	assert.True(t, opts.RequireAtLeastOnePhoto)
	assert.Equal(t, 4, opts.MaxPhotoSlots)
	assert.Equal(t, listing.PhotoModeArray, opts.PhotoMode)
	assert.Equal(t, listing.StatusUnavailable, opts.StatusAliases["vendido"])
	assert.Equal(t, listing.StatusAvailable, opts.StatusAliases["ativo"])
	assert.Equal(t, listing.StatusAvailable, opts.StatusAliases["Available"])

	sc := cfg.StorageConfig()
	assert.Equal(t, storage.BackendS3, sc.Backend)
	assert.Equal(t, "photos", sc.S3.Bucket)
	assert.Equal(t, "imobiliaria", sc.Prefix)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
}

func TestListingOptions_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "too many slots", mutate: func(c *Config) { c.Listing.MaxPhotoSlots = 11 }},
		{name: "unknown mode", mutate: func(c *Config) { c.Listing.PhotoMode = "grid" }},
		{name: "alias to unknown status", mutate: func(c *Config) {
			c.Listing.StatusAliases = map[string]string{"vendido": "sold"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.Listing.MaxPhotoSlots = 10
			cfg.Listing.PhotoMode = "slots"
			tt.mutate(cfg)

			_, err := cfg.ListingOptions()
			assert.Error(t, err)
		})
	}
}
