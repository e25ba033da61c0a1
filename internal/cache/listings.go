package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"imobiliaria/server/internal/models"
)

// Repository is the listing persistence the cache sits in front of.
type Repository interface {
	Create(ctx context.Context, l *models.Listing) error
	FindAll(ctx context.Context) ([]models.Listing, error)
	FindByID(ctx context.Context, id int64) (*models.Listing, error)
	Update(ctx context.Context, id int64, l *models.Listing) (*models.Listing, error)
	Delete(ctx context.Context, id int64) error
}

// Listings is a read-through cache of single listings. Cache failures are
// logged and fall back to the repository; they never fail a call.
type Listings struct {
	repo   Repository
	client Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewListings(repo Repository, client Client, ttl time.Duration, logger *logrus.Logger) *Listings {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Listings{repo: repo, client: client, ttl: ttl, logger: logger}
}

func key(id int64) string {
	return "listing:" + strconv.FormatInt(id, 10)
}

func (c *Listings) Create(ctx context.Context, l *models.Listing) error {
	return c.repo.Create(ctx, l)
}

func (c *Listings) FindAll(ctx context.Context) ([]models.Listing, error) {
	return c.repo.FindAll(ctx)
}

func (c *Listings) FindByID(ctx context.Context, id int64) (*models.Listing, error) {
	data, err := c.client.Get(ctx, key(id))
	switch {
	case err == nil:
		var l models.Listing
		decodeErr := json.Unmarshal(data, &l)
		if decodeErr == nil {
			return &l, nil
		}
		c.logger.WithError(decodeErr).WithField("listing_id", id).Warn("Discarding unreadable cache entry")
	case !errors.Is(err, ErrMiss):
		c.logger.WithError(err).WithField("listing_id", id).Warn("Cache read failed")
	}

	l, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, l)
	return l, nil
}

func (c *Listings) Update(ctx context.Context, id int64, l *models.Listing) (*models.Listing, error) {
	updated, err := c.repo.Update(ctx, id, l)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, id)
	return updated, nil
}

func (c *Listings) Delete(ctx context.Context, id int64) error {
	if err := c.repo.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *Listings) store(ctx context.Context, l *models.Listing) {
	data, err := json.Marshal(l)
	if err != nil {
		c.logger.WithError(err).WithField("listing_id", l.ID).Warn("Failed to encode listing for cache")
		return
	}
	if err := c.client.Set(ctx, key(l.ID), data, c.ttl); err != nil {
		c.logger.WithError(err).WithField("listing_id", l.ID).Warn("Cache write failed")
	}
}

func (c *Listings) invalidate(ctx context.Context, id int64) {
	if err := c.client.Del(ctx, key(id)); err != nil {
		c.logger.WithError(err).WithField("listing_id", id).Warn("Cache invalidation failed")
	}
}
