package shared

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var listingValidator = newListingValidator()

// Listing is the descriptive part of an auction. The image reference is an
// opaque blob to the ledger: either a remote URL or an inline data URL.
type Listing struct {
	Title       string `json:"title" validate:"min=3,max=100"`
	Description string `json:"description" validate:"min=10,max=1000"`
	ImageRef    string `json:"image_ref" validate:"required,image_ref"`
}

// Normalize trims surrounding whitespace from the text fields.
func (l Listing) Normalize() Listing {
	return Listing{
		Title:       strings.TrimSpace(l.Title),
		Description: strings.TrimSpace(l.Description),
		ImageRef:    strings.TrimSpace(l.ImageRef),
	}
}

// Validate checks the listing against the catalogue rules. Only the first
// failing field is reported.
func (l Listing) Validate() error {
	err := listingValidator.Struct(l)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	switch fieldErrs[0].StructField() {
	case "Title":
		return ErrInvalidTitle
	case "Description":
		return ErrInvalidDescription
	default:
		return ErrInvalidImageRef
	}
}

func newListingValidator() *validator.Validate {
	v := validator.New()

	// image_ref accepts an http(s) URL or an inline base64 image data URL
	_ = v.RegisterValidation("image_ref", func(fl validator.FieldLevel) bool {
		ref := fl.Field().String()
		if v.Var(ref, "http_url") == nil {
			return true
		}
		return strings.HasPrefix(ref, "data:image/") && v.Var(ref, "datauri") == nil
	})

	return v
}

// ListingPatch carries the fields of a listing edit. Nil or blank fields keep
// their current value.
type ListingPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageRef    *string `json:"image_ref,omitempty"`
}

// Apply returns current with the patch merged in, normalized
func (p ListingPatch) Apply(current Listing) Listing {
	merged := current
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		merged.Title = *p.Title
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) != "" {
		merged.Description = *p.Description
	}
	if p.ImageRef != nil && strings.TrimSpace(*p.ImageRef) != "" {
		merged.ImageRef = *p.ImageRef
	}
	return merged.Normalize()
}
