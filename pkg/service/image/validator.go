package image

import (
	"bytes"
	"image"
	_ "image/gif"  // Import for GIF support
	_ "image/jpeg" // Import for JPEG support
	_ "image/png"  // Import for PNG support
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	_ "golang.org/x/image/webp" // Import for WebP support
)

// Validator checks image attachments before they are sent to a model
type Validator struct {
	rules Rules
}

// NewValidator creates a new image validator with default rules
func NewValidator() *Validator {
	return &Validator{
		rules: DefaultRules(),
	}
}

// NewValidatorWithRules creates a new image validator with custom rules
func NewValidatorWithRules(rules Rules) *Validator {
	return &Validator{
		rules: rules,
	}
}

// Metadata holds metadata about a validated image
type Metadata struct {
	ContentType string
	Size        int64
	Width       int
	Height      int
	Format      string
}

// Validate checks size, MIME type and decodability of an attachment
func (v *Validator) Validate(img llm.Image) (*Metadata, error) {
	if len(img.Data) == 0 {
		return nil, ErrEmptyImage
	}

	size := int64(len(img.Data))
	if size > v.rules.MaxBytes {
		return nil, goerr.Wrap(ErrImageTooLarge, "image exceeds size limit",
			goerr.V("size", size), goerr.V("max", v.rules.MaxBytes))
	}

	declared := normalizeMimeType(img.MimeType)
	if !v.isAllowed(declared) {
		return nil, goerr.Wrap(ErrInvalidMimeType, "MIME type not allowed", goerr.V("mime_type", img.MimeType))
	}

	detected, err := detectMimeType(img.Data)
	if err != nil {
		return nil, err
	}
	if declared != detected {
		return nil, goerr.Wrap(ErrInvalidMimeType, "declared MIME type does not match content",
			goerr.V("declared", declared), goerr.V("detected", detected))
	}

	config, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return nil, goerr.Wrap(ErrCorruptedImage, "failed to decode image", goerr.V("error", err.Error()))
	}

	if config.Width < v.rules.MinWidth || config.Height < v.rules.MinHeight {
		return nil, goerr.Wrap(ErrImageTooSmall, "image below minimum dimensions",
			goerr.V("width", config.Width), goerr.V("height", config.Height))
	}

	return &Metadata{
		ContentType: detected,
		Size:        size,
		Width:       config.Width,
		Height:      config.Height,
		Format:      format,
	}, nil
}

func (v *Validator) isAllowed(mimeType string) bool {
	for _, allowed := range v.rules.AllowedMimeTypes {
		if mimeType == allowed {
			return true
		}
	}
	return false
}

// detectMimeType detects the MIME type from content
func detectMimeType(data []byte) (string, error) {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}

	mimeType := http.DetectContentType(head)
	switch {
	case strings.HasPrefix(mimeType, "image/jpeg"):
		return "image/jpeg", nil
	case strings.HasPrefix(mimeType, "image/png"):
		return "image/png", nil
	case strings.HasPrefix(mimeType, "image/gif"):
		return "image/gif", nil
	case strings.HasPrefix(mimeType, "image/webp"):
		return "image/webp", nil
	default:
		return "", goerr.Wrap(ErrInvalidImageFormat, "unsupported image content", goerr.V("detected", mimeType))
	}
}

func normalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}
