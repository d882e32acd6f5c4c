// Package storage holds what the storage backends share: area names, file
// metadata and name validation.
package storage

import (
	"errors"
	"strings"
	"time"
)

// Area names. Each backend keeps the areas in separate, flat namespaces.
const (
	AreaIntake  = "intake"
	AreaResults = "results"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidName = errors.New("invalid file name")
)

// Info describes a stored file.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// ValidateName accepts bare file names only, so a name can never address
// anything outside its area. Names starting with a dot are reserved for
// in-progress writes and are never served.
func ValidateName(name string) error {
	switch {
	case name == "", strings.HasPrefix(name, "."):
		return ErrInvalidName
	case strings.ContainsAny(name, "/\\\x00"):
		return ErrInvalidName
	}

	return nil
}
