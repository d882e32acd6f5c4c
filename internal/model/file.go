package model

// UploadedFile describes a file accepted into the intake area.
type UploadedFile struct {
	ID            string `json:"id"` // generated storage name, used as the lookup key
	OriginalName  string `json:"originalName"`
	Size          int64  `json:"size"`
	FormattedSize string `json:"formattedSize"`
	Type          string `json:"type"`                   // declared MIME type
	DetectedType  string `json:"detectedType,omitempty"` // content-sniffed MIME type
}

// ProcessedResult describes a file written to the results area.
type ProcessedResult struct {
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	FormattedSize string `json:"formattedSize"`
	DownloadURL   string `json:"downloadUrl"`
	Pages         int    `json:"pages,omitempty"` // set for PDF outputs only
}
