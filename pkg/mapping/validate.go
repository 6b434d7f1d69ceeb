package mapping

import (
	"errors"
	"iter"
	"strings"
)

const (
	asciiLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits       = "0123456789"
)

// CharSet is the set of characters legal in a constrained field.
type CharSet string

// Contains reports whether every character of v belongs to the set.
func (cs CharSet) Contains(v string) (rune, bool) {
	for _, c := range v {
		if !strings.ContainsRune(string(cs), c) {
			return c, false
		}
	}
	return 0, true
}

// Constraint restricts the characters of one field.
type Constraint struct {
	Field   Field
	Allowed CharSet
}

// AllowedChars lists the constrained fields in the order they are checked.
var AllowedChars = []Constraint{
	{Field: FieldSampleName, Allowed: CharSet("._-" + asciiLetters + digits)},
	{Field: FieldBarcodeSequence, Allowed: CharSet("AGCT")},
	{Field: FieldPrimerSequence, Allowed: CharSet("AGCTRYMKSWHBVDN")},
}

// Violation is one problem found in the record at Index.
type Violation struct {
	Index int
	Err   error
}

// Result collects the violations found by Check.
type Result struct {
	Violations []Violation
}

// OK reports whether no violation was found.
func (r Result) OK() bool { return len(r.Violations) == 0 }

// Err joins every violation into a single error, or returns nil.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Violations))
	for i, v := range r.Violations {
		errs[i] = v.Err
	}
	return errors.Join(errs...)
}

// validator tracks the identifiers seen during one pass.
type validator struct {
	names    map[string]struct{}
	barcodes map[string]struct{}
}

func newValidator() *validator {
	return &validator{
		names:    make(map[string]struct{}),
		barcodes: make(map[string]struct{}),
	}
}

// check reports the problems of rec to emit, in check order, stopping early
// when emit returns false.
func (v *validator) check(rec Record, emit func(error) bool) {
	for _, c := range AllowedChars {
		val, ok := rec[c.Field]
		if !ok {
			continue
		}
		if ch, ok := c.Allowed.Contains(val); !ok {
			if !emit(&InvalidCharacterError{Field: c.Field, Value: val, Char: ch, Record: rec}) {
				return
			}
		}
	}

	name, ok := rec[FieldSampleName]
	if !ok {
		if !emit(&MissingFieldError{Field: FieldSampleName, Record: rec}) {
			return
		}
	} else {
		if _, dup := v.names[name]; dup {
			if !emit(&DuplicateError{Field: FieldSampleName, Value: name, Record: rec}) {
				return
			}
		}
		v.names[name] = struct{}{}
	}

	// Records without a barcode share the empty barcode, so only one of them
	// passes.
	barcode := rec[FieldBarcodeSequence]
	if _, dup := v.barcodes[barcode]; dup {
		emit(&DuplicateError{Field: FieldBarcodeSequence, Value: barcode, Record: rec})
		return
	}
	v.barcodes[barcode] = struct{}{}
}

// Validate checks records for illegal characters, missing sample names and
// duplicate sample names or barcodes. It returns the first problem found and
// stops reading records at that point.
func Validate(records iter.Seq[Record]) error {
	v := newValidator()
	var first error
	for rec := range records {
		v.check(rec, func(err error) bool {
			first = err
			return false
		})
		if first != nil {
			return first
		}
	}
	return nil
}

// Check applies the same rules as Validate but reads every record and
// collects all violations.
func Check(records iter.Seq[Record]) Result {
	v := newValidator()
	var res Result
	i := 0
	for rec := range records {
		v.check(rec, func(err error) bool {
			res.Violations = append(res.Violations, Violation{Index: i, Err: err})
			return true
		})
		i++
	}
	return res
}
