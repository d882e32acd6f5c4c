package model

import "errors"

var (
	ErrInvalidFileType       = errors.New("invalid file type. Only PDF, DOCX, PPTX, JPG, and PNG files are allowed")
	ErrPayloadTooLarge       = errors.New("file too large")
	ErrMissingParameter      = errors.New("missing required parameters")
	ErrFileNotFound          = errors.New("file not found")
	ErrUnsupportedOperation  = errors.New("operation not supported for this file type")
	ErrUnsupportedConversion = errors.New("conversion not supported for this file type combination")
)

// RequestError is a client error whose message is more specific than the
// sentinel it belongs to.
type RequestError struct {
	Kind    error
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Kind }
