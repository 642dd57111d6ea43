package manifest

import (
	"strings"

	"github.com/pkg/errors"

	"etlmanifest/internal/config"
)

// Issue is a lint finding with a dotted path into the manifest.
type Issue = config.Issue

var (
	// ErrNotFound is returned when the manifest path cannot be read.
	ErrNotFound = errors.New("manifest not found")
	// ErrInvalid is returned when the document is not valid YAML or fails
	// structural validation.
	ErrInvalid = errors.New("invalid manifest")
)

// ValidationError carries every error-level issue found in a manifest.
// errors.Is(err, ErrInvalid) holds for it.
type ValidationError struct {
	Path   string
	Issues []Issue
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvalid.Error())
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	for i, iss := range e.Issues {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		if iss.Path != "" {
			b.WriteString(iss.Path)
			b.WriteString(": ")
		}
		b.WriteString(iss.Message)
	}
	return b.String()
}

// Is makes ValidationError match ErrInvalid.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalid }
