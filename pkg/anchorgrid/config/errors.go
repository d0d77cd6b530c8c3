package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates that a hard-required configuration key is absent
// or malformed.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrFieldUnavailable is matched by every FieldUnavailableError.
var ErrFieldUnavailable = errors.New("field unavailable")

// ErrUnknownSheet indicates a logical sheet name missing from Config.Sheets.
var ErrUnknownSheet = errors.New("unknown sheet")

// FieldUnavailableError reports that a configured field cannot be resolved
// against a document: its sheet is not configured or absent, or its cell or
// range is invalid.
type FieldUnavailableError struct {
	Field   string
	DocType string
	Sheet   string
	Ref     string
	Err     error
}

func (e *FieldUnavailableError) Error() string {
	msg := "field unavailable"
	if e.Field != "" {
		msg += fmt.Sprintf(" %q", e.Field)
	}
	if e.Sheet != "" {
		msg += fmt.Sprintf(" (%s sheet %q", e.DocType, e.Sheet)
		if e.Ref != "" {
			msg += " " + e.Ref
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FieldUnavailableError) Unwrap() error {
	return e.Err
}

// Is matches ErrFieldUnavailable.
func (e *FieldUnavailableError) Is(target error) bool {
	return target == ErrFieldUnavailable
}

// Unavailable wraps err as a FieldUnavailableError for field. An existing
// FieldUnavailableError gets its field name filled in.
func Unavailable(field string, err error) error {
	var fe *FieldUnavailableError
	if errors.As(err, &fe) {
		out := *fe
		if out.Field == "" {
			out.Field = field
		}
		return &out
	}
	return &FieldUnavailableError{Field: field, Err: err}
}
