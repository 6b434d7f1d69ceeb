package mapping

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrFormat           = errors.New("mapping: malformed file")
	ErrConflict         = errors.New("mapping: conflicting fields")
	ErrInvalidCharacter = errors.New("mapping: invalid character")
	ErrMissingField     = errors.New("mapping: missing field")
	ErrDuplicate        = errors.New("mapping: duplicate value")
)

// FormatError reports a structurally invalid mapping file.
type FormatError struct {
	Line   int // 1-based line number
	Column int // 1-based column number, 0 when not applicable
	Reason string
}

func (e *FormatError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("mapping: line %d column %d: %s", e.Line, e.Column, e.Reason)
	}
	return fmt.Sprintf("mapping: line %d: %s", e.Line, e.Reason)
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ConflictError is returned when converting a QIIME record would overwrite a
// registry field already present in the record.
type ConflictError struct {
	Field  Field
	Record Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("mapping: converting from QIIME format, but core field %s is already present: %v", e.Field, map[Field]string(e.Record))
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InvalidCharacterError reports a value containing a character outside the
// field's allowed set.
type InvalidCharacterError struct {
	Field  Field
	Value  string
	Char   rune
	Record Record
}

func (e *InvalidCharacterError) Error() string {
	return fmt.Sprintf("mapping: illegal character %q in %s %q: %v", e.Char, e.Field, e.Value, map[Field]string(e.Record))
}

// Is reports whether target is ErrInvalidCharacter.
func (e *InvalidCharacterError) Is(target error) bool { return target == ErrInvalidCharacter }

// MissingFieldError reports a record lacking a mandatory field.
type MissingFieldError struct {
	Field  Field
	Record Record
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("mapping: no %s: %v", e.Field, map[Field]string(e.Record))
}

// Is reports whether target is ErrMissingField.
func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// DuplicateError reports a value repeated within one validation pass.
type DuplicateError struct {
	Field  Field
	Value  string
	Record Record
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("mapping: duplicate %s %q: %v", e.Field, e.Value, map[Field]string(e.Record))
}

// Is reports whether target is ErrDuplicate.
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }
