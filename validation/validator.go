package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/kbukum/monitkit/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: message,
	})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns a CONFIGURATION AppError if there are validation errors,
// nil otherwise.
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}

	messages := make([]string, len(v.errors))
	for i, e := range v.errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}

	return errors.Configuration("%s", strings.Join(messages, "; ")).
		WithDetail("fields", v.errors)
}

// Required checks if a string is non-empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// Absolute checks that a non-empty path is absolute.
func (v *Validator) Absolute(field, path string) *Validator {
	if path != "" && !filepath.IsAbs(path) {
		v.AddError(field, "must be an absolute path")
	}
	return v
}

// Executable checks that path names a regular file the caller may execute.
func (v *Validator) Executable(field, path string) *Validator {
	if path == "" {
		return v
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		v.AddError(field, "does not exist")
	case !info.Mode().IsRegular():
		v.AddError(field, "is not a regular file")
	case unix.Access(path, unix.X_OK) != nil:
		v.AddError(field, "is not executable")
	}
	return v
}

// Directory checks that a non-empty path is a searchable directory.
func (v *Validator) Directory(field, path string) *Validator {
	if path == "" {
		return v
	}
	info, err := os.Stat(path)
	switch {
	case err != nil || !info.IsDir():
		v.AddError(field, "is not a directory")
	case unix.Access(path, unix.X_OK) != nil:
		v.AddError(field, "is not accessible")
	}
	return v
}

// EnvEntries checks that every entry has the form "name=value" with a
// non-empty name.
func (v *Validator) EnvEntries(field string, entries []string) *Validator {
	for i, entry := range entries {
		name, _, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.ContainsRune(entry, 0) {
			v.AddError(fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("invalid entry %q", entry))
		}
	}
	return v
}

// NonNegative checks that an integer is >= 0.
func (v *Validator) NonNegative(field string, value int) *Validator {
	if value < 0 {
		v.AddError(field, "must not be negative")
	}
	return v
}
