// Package validation checks request payloads before they reach a service.
package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + " " + f.Message
}

// Errors lists every invalid field of a payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, f := range e {
		parts[i] = f.String()
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// Messages returns one human readable line per invalid field.
func (e Errors) Messages() []string {
	out := make([]string, len(e))
	for i, f := range e {
		out[i] = f.String()
	}
	return out
}

func (e *Errors) add(field, format string, args ...any) {
	*e = append(*e, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// IsHTTPURL reports whether raw is an absolute http or https url with a host.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateIngestion checks a submission and returns Errors if any field is invalid.
func ValidateIngestion(req core.IngestionRequest) error {
	var errs Errors

	// only the empty string counts as empty, whitespace is content
	if req.SourceID == "" {
		errs.add("source_id", "should not be empty")
	}

	if !IsHTTPURL(req.OriginalURL) {
		errs.add("original_url", "must be an absolute http(s) URL")
	}

	if req.RawText == "" {
		errs.add("raw_text", "should not be empty")
	}

	for i, img := range req.RawImages {
		if !IsHTTPURL(img) {
			errs.add(fmt.Sprintf("raw_images[%d]", i), "must be an absolute http(s) URL")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
