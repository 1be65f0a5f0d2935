package image

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
)

var (
	// ErrInvalidImageFormat indicates an unsupported image format
	ErrInvalidImageFormat = goerr.New("invalid image format", goerr.T(apperr.ErrTagValidation))

	// ErrImageTooLarge indicates the image payload is too large
	ErrImageTooLarge = goerr.New("image too large", goerr.T(apperr.ErrTagValidation))

	// ErrImageTooSmall indicates the image dimensions are too small
	ErrImageTooSmall = goerr.New("image dimensions too small", goerr.T(apperr.ErrTagValidation))

	// ErrInvalidMimeType indicates declared and detected types disagree
	ErrInvalidMimeType = goerr.New("invalid MIME type", goerr.T(apperr.ErrTagValidation))

	// ErrCorruptedImage indicates the image data cannot be decoded
	ErrCorruptedImage = goerr.New("corrupted image data", goerr.T(apperr.ErrTagValidation))

	// ErrEmptyImage indicates an attachment without data
	ErrEmptyImage = goerr.New("empty image data", goerr.T(apperr.ErrTagValidation))
)

// Rules defines the validation rules for image attachments
type Rules struct {
	MaxBytes         int64    // Maximum payload size in bytes
	MinWidth         int      // Minimum width in pixels
	MinHeight        int      // Minimum height in pixels
	MaxWidth         int      // Larger images are downscaled to fit
	MaxHeight        int      // Larger images are downscaled to fit
	AllowedMimeTypes []string // Accepted MIME types
}

// DefaultRules returns the rules applied to model attachments
func DefaultRules() Rules {
	return Rules{
		MaxBytes:  20 * 1024 * 1024,
		MinWidth:  1,
		MinHeight: 1,
		MaxWidth:  2048,
		MaxHeight: 2048,
		AllowedMimeTypes: []string{
			"image/png",
			"image/jpeg",
			"image/gif",
			"image/webp",
		},
	}
}
