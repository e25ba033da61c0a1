package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"imobiliaria/server/internal/listing"
	"imobiliaria/server/internal/models"
	"imobiliaria/server/internal/storage"
)

// checkFiles validates every received photo and reports at most one problem
// per field.
func (h *Handler) checkFiles(in *requestInput) []listing.FieldError {
	resolver := h.normalizer.Resolver()
	seen := map[string]bool{}
	var errs []listing.FieldError

	for _, f := range in.files {
		mime, err := h.files.ValidateFile(f.header)
		if err == nil {
			f.mime = mime
			continue
		}

		field := resolver.CanonicalField(f.field)
		if seen[field] {
			continue
		}
		seen[field] = true
		errs = append(errs, listing.FieldError{Field: field, Reason: fileReason(err)})
	}
	return errs
}

func fileReason(err error) string {
	switch {
	case errors.Is(err, storage.ErrFileTooLarge):
		return err.Error()
	case errors.Is(err, storage.ErrFileExt), errors.Is(err, storage.ErrFileType):
		return "must be a jpg, jpeg or png image"
	default:
		return "could not be read"
	}
}

// storeUploads saves the received files that made it into rec.Photos and
// swaps their placeholders for the stored references. Files dropped by the
// resolver are never stored. On failure the files saved so far are removed.
func (h *Handler) storeUploads(ctx context.Context, in *requestInput, rec *listing.Record) ([]string, error) {
	stored := map[string]string{}
	var refs []string

	for _, ref := range rec.Photos.Refs() {
		if !strings.HasPrefix(ref, pendingPrefix) {
			continue
		}
		if _, ok := stored[ref]; ok {
			continue
		}

		f := in.file(ref)
		if f == nil {
			h.discard(ctx, refs)
			return nil, fmt.Errorf("no received file for %s", ref)
		}

		saved, err := h.save(ctx, f)
		if err != nil {
			h.discard(ctx, refs)
			return nil, err
		}
		stored[ref] = saved
		refs = append(refs, saved)
	}

	rec.Photos.Rewrite(func(ref string) string {
		if saved, ok := stored[ref]; ok {
			return saved
		}
		return ref
	})
	return refs, nil
}

func (h *Handler) save(ctx context.Context, f *pendingFile) (string, error) {
	file, err := f.header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload %s: %w", f.header.Filename, err)
	}
	defer file.Close()

	ref, err := h.storage.Save(ctx, f.header.Filename, f.mime, file, f.header.Size)
	if err != nil {
		return "", fmt.Errorf("failed to save upload %s: %w", f.header.Filename, err)
	}
	return ref, nil
}

// discard removes files stored for a request that then failed.
func (h *Handler) discard(ctx context.Context, refs []string) {
	var failed []string
	for _, ref := range refs {
		if err := h.storage.Delete(ctx, ref); err != nil {
			h.logger.WithError(err).WithField("ref", ref).Warn("Failed to remove stored upload")
			failed = append(failed, ref)
		}
	}
	h.recordOrphans(ctx, models.OrphanPersistFailed, nil, failed)
}

// release deletes the stored objects behind refs that this service owns.
// External URLs are left alone. Failed deletions are recorded as orphans.
func (h *Handler) release(ctx context.Context, id int64, refs []string) {
	seen := map[string]bool{}
	var failed []string

	for _, ref := range refs {
		if seen[ref] || !h.storage.Owns(ref) {
			continue
		}
		seen[ref] = true

		if err := h.storage.Delete(ctx, ref); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"listing_id": id,
				"ref":        ref,
			}).Warn("Failed to delete listing photo")
			failed = append(failed, ref)
		}
	}
	h.recordOrphans(ctx, models.OrphanDeleteFailed, &id, failed)
}

// recordOrphans stores refs for the sweep task. It runs even when the request
// context is already cancelled.
func (h *Handler) recordOrphans(ctx context.Context, reason string, id *int64, refs []string) {
	if len(refs) == 0 || h.orphans == nil {
		return
	}
	if err := h.orphans.Record(context.WithoutCancel(ctx), reason, id, refs...); err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"reason": reason,
			"refs":   refs,
		}).Error("Failed to record orphaned photos")
	}
}
