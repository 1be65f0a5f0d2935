package image

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/model/llm"
	"golang.org/x/image/draw"
)

// Processor validates attachments and downscales oversized ones
type Processor struct {
	validator *Validator
	rules     Rules
}

// NewProcessor creates a processor with the given rules
func NewProcessor(rules Rules) *Processor {
	return &Processor{
		validator: NewValidatorWithRules(rules),
		rules:     rules,
	}
}

// Prepare validates every image and returns them ready to send. Images that
// exceed the maximum dimensions are scaled down preserving aspect ratio.
func (p *Processor) Prepare(images []llm.Image) ([]llm.Image, error) {
	prepared := make([]llm.Image, 0, len(images))
	for i, img := range images {
		meta, err := p.validator.Validate(img)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid image attachment", goerr.V("index", i))
		}

		if meta.Width <= p.rules.MaxWidth && meta.Height <= p.rules.MaxHeight {
			prepared = append(prepared, llm.Image{MimeType: meta.ContentType, Data: img.Data})
			continue
		}

		resized, err := p.fit(img.Data, meta)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resize image attachment", goerr.V("index", i))
		}
		prepared = append(prepared, *resized)
	}
	return prepared, nil
}

// fit scales an image down into MaxWidth x MaxHeight
func (p *Processor) fit(data []byte, meta *Metadata) (*llm.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, goerr.Wrap(ErrCorruptedImage, "failed to decode image", goerr.V("error", err.Error()))
	}

	srcBounds := src.Bounds()
	scaleX := float64(p.rules.MaxWidth) / float64(srcBounds.Dx())
	scaleY := float64(p.rules.MaxHeight) / float64(srcBounds.Dy())
	scale := scaleX
	if scaleY < scale {
		scale = scaleY
	}

	width := max(int(float64(srcBounds.Dx())*scale), 1)
	height := max(int(float64(srcBounds.Dy())*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, srcBounds, draw.Over, nil)

	// JPEG stays JPEG, everything else is re-encoded losslessly
	var buf bytes.Buffer
	mimeType := "image/png"
	if meta.ContentType == "image/jpeg" {
		mimeType = "image/jpeg"
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
			return nil, goerr.Wrap(err, "failed to encode JPEG")
		}
	} else if err := png.Encode(&buf, dst); err != nil {
		return nil, goerr.Wrap(err, "failed to encode PNG")
	}

	return &llm.Image{MimeType: mimeType, Data: buf.Bytes()}, nil
}
