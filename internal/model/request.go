package model

import "strings"

// Operation is the kind of processing requested for an uploaded file.
type Operation string

const (
	OpCompress Operation = "compress"
	OpConvert  Operation = "convert"
)

// Quality bounds for image operations.
const (
	DefaultQuality = 80
	MinQuality     = 20
	MaxQuality     = 100
)

// ProcessingRequest is a single compress or convert call against an uploaded file.
type ProcessingRequest struct {
	FileID       string    `json:"fileId"`
	Operation    Operation `json:"operation"`
	TargetFormat string    `json:"targetFormat,omitempty"` // only meaningful for convert
	Quality      *int      `json:"quality,omitempty"`      // defaults to DefaultQuality
}

// Target returns the requested target format in lower case without a leading dot.
func (r ProcessingRequest) Target() string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(r.TargetFormat)), ".")
}

// EffectiveQuality returns the requested quality clamped to [MinQuality, MaxQuality].
func (r ProcessingRequest) EffectiveQuality() int {
	q := DefaultQuality
	if r.Quality != nil {
		q = *r.Quality
	}

	return max(MinQuality, min(MaxQuality, q))
}
