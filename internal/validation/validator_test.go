package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KatnessChen/MaraMap-Backend/internal/core"
)

func TestValidateIngestion(t *testing.T) {
	valid := core.IngestionRequest{
		SourceID:    "fb_123",
		OriginalURL: "https://facebook.com/posts/123",
		RawText:     "hello",
		RawImages:   []string{"https://cdn.example.com/a.jpg"},
	}

	tests := []struct {
		name       string
		mutate     func(*core.IngestionRequest)
		wantFields []string
	}{
		{name: "Valid", mutate: func(*core.IngestionRequest) {}},
		{name: "No Images", mutate: func(r *core.IngestionRequest) { r.RawImages = nil }},
		{
			name:       "Empty Source ID",
			mutate:     func(r *core.IngestionRequest) { r.SourceID = "" },
			wantFields: []string{"source_id"},
		},
		{
			name:       "Empty Raw Text",
			mutate:     func(r *core.IngestionRequest) { r.RawText = "" },
			wantFields: []string{"raw_text"},
		},
		{
			name: "Whitespace Is Content",
			mutate: func(r *core.IngestionRequest) {
				r.SourceID = "  "
				r.RawText = "\n"
			},
		},
		{
			name:   "Long Values",
			mutate: func(r *core.IngestionRequest) { r.SourceID = strings.Repeat("x", 4096) },
		},
		{
			name: "Many Images",
			mutate: func(r *core.IngestionRequest) {
				for range 200 {
					r.RawImages = append(r.RawImages, "https://cdn.example.com/a.jpg")
				}
			},
		},
		{
			name:       "Relative URL",
			mutate:     func(r *core.IngestionRequest) { r.OriginalURL = "/posts/123" },
			wantFields: []string{"original_url"},
		},
		{
			name:       "Non HTTP URL",
			mutate:     func(r *core.IngestionRequest) { r.OriginalURL = "javascript:alert(1)" },
			wantFields: []string{"original_url"},
		},
		{
			name: "Everything Wrong",
			mutate: func(r *core.IngestionRequest) {
				*r = core.IngestionRequest{RawImages: []string{"ok?", "https://fine.example.com/x.png", "ftp://x"}}
			},
			wantFields: []string{"source_id", "original_url", "raw_text", "raw_images[0]", "raw_images[2]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			req.RawImages = append([]string(nil), valid.RawImages...)
			tt.mutate(&req)

			err := ValidateIngestion(req)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("ValidateIngestion() unexpected error = %v", err)
				}
				return
			}

			var errs Errors
			if !errors.As(err, &errs) {
				t.Fatalf("ValidateIngestion() error = %v, want Errors", err)
			}
			var got []string
			for _, f := range errs {
				got = append(got, f.Field)
			}
			if diff := cmp.Diff(tt.wantFields, got); diff != "" {
				t.Errorf("invalid fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
