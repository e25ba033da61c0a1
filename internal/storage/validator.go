package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrFileExt      = errors.New("invalid file extension")
	ErrFileType     = errors.New("invalid file type")
)

// UploadLimits bounds what an uploaded photo may be.
type UploadLimits struct {
	MaxSizeMB         int
	AllowedExtensions []string
	AllowedMimeTypes  []string
}

// DefaultUploadLimits accepts jpg, jpeg and png images up to 15 MB.
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxSizeMB:         15,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
		AllowedMimeTypes:  []string{"image/jpeg", "image/png"},
	}
}

type FileValidator struct {
	allowedExt  map[string]bool
	allowedMime map[string]bool
	maxSize     int64
}

func NewFileValidator(limits UploadLimits) *FileValidator {
	allowedExt := make(map[string]bool)
	for _, ext := range limits.AllowedExtensions {
		if ext = strings.TrimSpace(strings.ToLower(ext)); ext != "" {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			allowedExt[ext] = true
		}
	}

	allowedMime := make(map[string]bool)
	for _, m := range limits.AllowedMimeTypes {
		if m = strings.TrimSpace(strings.ToLower(m)); m != "" {
			allowedMime[m] = true
		}
	}

	sizeMB := limits.MaxSizeMB
	if sizeMB <= 0 {
		sizeMB = DefaultUploadLimits().MaxSizeMB
	}

	return &FileValidator{
		allowedExt:  allowedExt,
		allowedMime: allowedMime,
		maxSize:     int64(sizeMB) << 20,
	}
}

// MaxSize is the largest accepted file in bytes.
func (v *FileValidator) MaxSize() int64 {
	return v.maxSize
}

// ValidateFile checks size, extension and sniffed content type, and returns
// the detected MIME type.
func (v *FileValidator) ValidateFile(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader.Size > v.maxSize {
		return "", fmt.Errorf("%w (max %d MB)", ErrFileTooLarge, v.maxSize>>20)
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !v.allowedExt[ext] {
		return "", ErrFileExt
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := io.ReadFull(file, buffer)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read file header: %w", err)
	}

	detectedMime := strings.ToLower(http.DetectContentType(buffer[:n]))
	if i := strings.IndexByte(detectedMime, ';'); i >= 0 {
		detectedMime = strings.TrimSpace(detectedMime[:i])
	}
	if !v.allowedMime[detectedMime] {
		return "", ErrFileType
	}

	return detectedMime, nil
}
