package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"imobiliaria/server/internal/database"
	"imobiliaria/server/internal/events"
	"imobiliaria/server/internal/listing"
	"imobiliaria/server/internal/models"
	"imobiliaria/server/internal/storage"
)

// ListingStore persists listings. Implemented by the database repository and
// the cache decorator around it.
type ListingStore interface {
	Create(ctx context.Context, l *models.Listing) error
	FindAll(ctx context.Context) ([]models.Listing, error)
	FindByID(ctx context.Context, id int64) (*models.Listing, error)
	Update(ctx context.Context, id int64, l *models.Listing) (*models.Listing, error)
	Delete(ctx context.Context, id int64) error
}

// OrphanRecorder remembers stored files that nothing references anymore.
type OrphanRecorder interface {
	Record(ctx context.Context, reason string, listingID *int64, refs ...string) error
}

type HandlerConfig struct {
	Listings   ListingStore
	Orphans    OrphanRecorder
	Storage    storage.Storage
	Normalizer *listing.Normalizer
	Files      *storage.FileValidator
	Events     events.Publisher
	Logger     *logrus.Logger
}

type Handler struct {
	listings   ListingStore
	orphans    OrphanRecorder
	storage    storage.Storage
	normalizer *listing.Normalizer
	files      *storage.FileValidator
	events     events.Publisher
	logger     *logrus.Logger
	maxBody    int64
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	files := cfg.Files
	if files == nil {
		files = storage.NewFileValidator(storage.DefaultUploadLimits())
	}

	return &Handler{
		listings:   cfg.Listings,
		orphans:    cfg.Orphans,
		storage:    cfg.Storage,
		normalizer: cfg.Normalizer,
		files:      files,
		events:     publisher,
		logger:     logger,
		maxBody:    bodyLimit(cfg.Normalizer.Options(), files.MaxSize()),
	}
}

// bodyLimit caps a request at a number of full-size files plus the text
// fields. Slot mode gets one spare file. Array mode drops photos past the
// last slot instead of rejecting them, so it accepts twice the slot count
// before answering 413.
func bodyLimit(opts listing.Options, fileMax int64) int64 {
	files := int64(opts.MaxPhotoSlots) + 1
	if opts.PhotoMode == listing.PhotoModeArray {
		files = 2 * int64(opts.MaxPhotoSlots)
	}
	return files*fileMax + maxNonFileFields
}

func (h *Handler) CreateListing(c *gin.Context) {
	in, ok := h.readInput(c)
	if !ok {
		return
	}
	defer in.cleanup()

	cand, ok := h.normalize(c, in, nil)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stored, err := h.storeUploads(ctx, in, &cand.Record)
	if err != nil {
		h.logger.WithError(err).Error("Failed to store listing photos")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create listing failed"})
		return
	}

	row := models.NewListing(cand.Record)
	if err := h.listings.Create(ctx, row); err != nil {
		h.logger.WithError(err).Error("Failed to create listing")
		h.recordOrphans(ctx, models.OrphanPersistFailed, nil, stored)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create listing failed"})
		return
	}

	h.logDropped(row.ID, cand.Resolution.Dropped)
	h.publish(ctx, events.NewEvent(events.Created, row.ID, row))
	c.JSON(http.StatusCreated, row)
}

func (h *Handler) ListListings(c *gin.Context) {
	listings, err := h.listings.FindAll(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list listings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list listings failed"})
		return
	}

	c.JSON(http.StatusOK, listings)
}

func (h *Handler) GetListing(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	l, ok := h.find(c, id, "get listing failed")
	if !ok {
		return
	}

	c.JSON(http.StatusOK, l)
}

// UpdateListing applies a partial update. Fields left out keep their stored
// values and photos that are no longer referenced are deleted afterwards.
func (h *Handler) UpdateListing(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	existing, ok := h.find(c, id, "update listing failed")
	if !ok {
		return
	}

	in, ok := h.readInput(c)
	if !ok {
		return
	}
	defer in.cleanup()

	cand, ok := h.normalize(c, in, existing.Record())
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stored, err := h.storeUploads(ctx, in, &cand.Record)
	if err != nil {
		h.logger.WithError(err).WithField("listing_id", id).Error("Failed to store listing photos")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update listing failed"})
		return
	}

	updated, err := h.listings.Update(ctx, id, models.NewListing(cand.Record))
	if err != nil {
		h.recordOrphans(ctx, models.OrphanPersistFailed, &id, stored)
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		h.logger.WithError(err).WithField("listing_id", id).Error("Failed to update listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update listing failed"})
		return
	}

	h.release(ctx, id, cand.Resolution.Released)
	h.logDropped(id, cand.Resolution.Dropped)
	h.publish(ctx, events.NewEvent(events.Updated, id, updated))
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteListing(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	existing, ok := h.find(c, id, "delete listing failed")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.listings.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		h.logger.WithError(err).WithField("listing_id", id).Error("Failed to delete listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete listing failed"})
		return
	}

	h.release(ctx, id, existing.Photos().Refs())
	h.publish(ctx, events.NewEvent(events.Deleted, id, nil))
	c.JSON(http.StatusOK, gin.H{"message": "listing deleted"})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) find(c *gin.Context, id int64, failure string) (*models.Listing, bool) {
	l, err := h.listings.FindByID(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return nil, false
	}
	if err != nil {
		h.logger.WithError(err).WithField("listing_id", id).Error("Failed to fetch listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": failure})
		return nil, false
	}
	return l, true
}

func (h *Handler) readInput(c *gin.Context) (*requestInput, bool) {
	in, err := readInput(c, h.maxBody, h.normalizer.Resolver().IsPhotoField)
	switch {
	case err == nil:
		return in, true
	case errors.Is(err, errBodyTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, errUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Debug("Rejected request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
	}
	return nil, false
}

// normalize checks the received files and the fields together so the client
// sees every problem at once. Nothing has been stored at this point.
func (h *Handler) normalize(c *gin.Context, in *requestInput, previous *listing.Record) (*listing.Candidate, bool) {
	fileErrs := h.checkFiles(in)

	uploads := make([]listing.Upload, 0, len(in.files))
	for _, f := range in.files {
		uploads = append(uploads, listing.Upload{Field: f.field, Ref: f.ref})
	}

	cand, err := h.normalizer.Normalize(listing.Input{
		Fields:   in.fields,
		Uploads:  uploads,
		Previous: previous,
	})

	var verr *listing.ValidationError
	switch {
	case err == nil && len(fileErrs) == 0:
		return cand, true
	case err == nil:
		verr = listing.NewValidationError(fileErrs...)
	case errors.As(err, &verr):
		verr = mergeIssues(fileErrs, verr.Fields)
	default:
		h.logger.WithError(err).Error("Failed to normalize listing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validate listing failed"})
		return nil, false
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input", "issues": verr.Fields})
	return nil, false
}

func mergeIssues(first, rest []listing.FieldError) *listing.ValidationError {
	seen := make(map[string]bool, len(first)+len(rest))
	merged := make([]listing.FieldError, 0, len(first)+len(rest))
	for _, fe := range append(first, rest...) {
		if seen[fe.Field] {
			continue
		}
		seen[fe.Field] = true
		merged = append(merged, fe)
	}
	return listing.NewValidationError(merged...)
}

func (h *Handler) publish(ctx context.Context, ev events.Event) {
	if err := h.events.Publish(ctx, ev); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"event":      ev.Type,
			"listing_id": ev.ListingID,
		}).Warn("Failed to publish listing event")
	}
}

func (h *Handler) logDropped(id int64, dropped []string) {
	if len(dropped) == 0 {
		return
	}
	h.logger.WithFields(logrus.Fields{
		"listing_id": id,
		"dropped":    len(dropped),
	}).Info("Photos beyond slot capacity were discarded")
}
