package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/Sriram-PR/logo-scraper/pkg/config"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// ValidationErrorKind classifies a rejected image
type ValidationErrorKind int

const (
	ValidationCorrupt ValidationErrorKind = iota
	ValidationTooSmall
	ValidationTooLarge
	ValidationBadAspectRatio
)

func (k ValidationErrorKind) String() string {
	switch k {
	case ValidationCorrupt:
		return "Corrupt"
	case ValidationTooSmall:
		return "TooSmall"
	case ValidationTooLarge:
		return "TooLarge"
	case ValidationBadAspectRatio:
		return "BadAspectRatio"
	default:
		return "Unknown"
	}
}

// ValidationError is returned by Validator.Validate
type ValidationError struct {
	Kind   ValidationErrorKind
	Width  int
	Height int
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validate: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("validate: %s (%dx%d)", e.Kind, e.Width, e.Height)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == utils.ErrValidation }

// Category is used by utils.CategorizeError
func (e *ValidationError) Category() string { return "Validation_" + e.Kind.String() }

// Bounds are the acceptance limits applied by the Validator
type Bounds struct {
	MinDimension int
	MaxDimension int
	MinAspect    float64
	MaxAspect    float64
	CheckAspect  bool
}

// BoundsFromConfig derives validator bounds from the pipeline config
func BoundsFromConfig(p config.PipelineConfig) Bounds {
	return Bounds{
		MinDimension: p.MinDimension,
		MaxDimension: p.MaxDimension,
		MinAspect:    p.MinAspectRatio,
		MaxAspect:    p.MaxAspectRatio,
		CheckAspect:  p.LogoStrictness == config.StrictnessLogo,
	}
}

// Decoded is a validated image
type Decoded struct {
	Image  image.Image
	Width  int
	Height int
	Format models.ImageFormat
}

// Validator decodes candidate bytes and rejects images outside its bounds
type Validator struct {
	bounds Bounds
}

// NewValidator creates a Validator
func NewValidator(b Bounds) *Validator {
	return &Validator{bounds: b}
}

// Validate checks dimensions from the image header before paying for a full decode.
func (v *Validator) Validate(data []byte) (*Decoded, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Kind: ValidationCorrupt, Err: err}
	}
	if err := v.checkBounds(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Kind: ValidationCorrupt, Width: cfg.Width, Height: cfg.Height, Err: err}
	}
	b := img.Bounds()
	if err := v.checkBounds(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	return &Decoded{
		Image:  img,
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: models.FormatFromName(name),
	}, nil
}

func (v *Validator) checkBounds(w, h int) error {
	if w <= 0 || h <= 0 {
		return &ValidationError{Kind: ValidationCorrupt, Width: w, Height: h}
	}
	if w < v.bounds.MinDimension || h < v.bounds.MinDimension {
		return &ValidationError{Kind: ValidationTooSmall, Width: w, Height: h}
	}
	if v.bounds.MaxDimension > 0 && (w > v.bounds.MaxDimension || h > v.bounds.MaxDimension) {
		return &ValidationError{Kind: ValidationTooLarge, Width: w, Height: h}
	}
	if v.bounds.CheckAspect {
		ratio := float64(w) / float64(h)
		if ratio < v.bounds.MinAspect || ratio > v.bounds.MaxAspect {
			return &ValidationError{Kind: ValidationBadAspectRatio, Width: w, Height: h}
		}
	}
	return nil
}
