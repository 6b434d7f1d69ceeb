package mapping

import (
	"maps"
	"slices"
)

// Field names a mapping file column. Any value not listed below is an
// annotation field.
type Field string

// Registry column names.
const (
	FieldSampleName      Field = "sample_name"
	FieldBarcodeSequence Field = "barcode_sequence"
	FieldPrimerSequence  Field = "primer_sequence"
)

// QIIME column names.
const (
	QIIMESampleID             Field = "SampleID"
	QIIMEBarcodeSequence      Field = "BarcodeSequence"
	QIIMELinkerPrimerSequence Field = "LinkerPrimerSequence"
	QIIMEDescription          Field = "Description"
)

// NA is written for cells that have no value.
const NA = "NA"

// CommentMarker prefixes comment lines and the QIIME header line.
const CommentMarker = "#"

// CoreFields are the mandatory registry columns, in output order.
var CoreFields = []Field{FieldSampleName, FieldBarcodeSequence}

// Rename maps a QIIME column onto its registry equivalent.
type Rename struct {
	QIIME Field
	Core  Field
}

// QIIMERenames is the fixed QIIME to registry rename table.
var QIIMERenames = []Rename{
	{QIIME: QIIMESampleID, Core: FieldSampleName},
	{QIIME: QIIMEBarcodeSequence, Core: FieldBarcodeSequence},
}

// QIIMEIdentityFields lead every QIIME header, in order.
var QIIMEIdentityFields = []Field{QIIMESampleID, QIIMEBarcodeSequence, QIIMELinkerPrimerSequence}

var missingValues = map[string]struct{}{
	"":           {},
	"0000-00-00": {},
	"null":       {},
	"Null":       {},
	"NA":         {},
	"na":         {},
	"none":       {},
	"None":       {},
}

// IsMissing reports whether v is one of the tokens read as "no value".
// The comparison is verbatim.
func IsMissing(v string) bool {
	_, ok := missingValues[v]
	return ok
}

// MissingValues returns the tokens read as "no value", sorted.
func MissingValues() []string {
	return slices.Sorted(maps.Keys(missingValues))
}

// Record maps column names to values for one sample.
type Record map[Field]string

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Keys returns the record's field names in lexicographic order.
func (r Record) Keys() []Field {
	return slices.Sorted(maps.Keys(r))
}

// Get returns the value stored for f, or "" when absent.
func (r Record) Get(f Field) string {
	return r[f]
}

// Columns is an ordered set of field names.
type Columns struct {
	names []Field
	index map[Field]int
}

// NewColumns returns a column set seeded with prefix, in order. Repeated
// names in prefix are kept once.
func NewColumns(prefix ...Field) *Columns {
	c := &Columns{index: make(map[Field]int, len(prefix))}
	for _, f := range prefix {
		c.Add(f)
	}
	return c
}

// Add appends f if it is not already present and reports whether it was added.
func (c *Columns) Add(f Field) bool {
	if _, ok := c.index[f]; ok {
		return false
	}
	c.index[f] = len(c.names)
	c.names = append(c.names, f)
	return true
}

// Index returns the position of f.
func (c *Columns) Index(f Field) (int, bool) {
	i, ok := c.index[f]
	return i, ok
}

// Len returns the number of columns.
func (c *Columns) Len() int { return len(c.names) }

// Names returns a copy of the column names in order.
func (c *Columns) Names() []Field {
	return slices.Clone(c.names)
}

// Strings returns the column names as plain strings.
func (c *Columns) Strings() []string {
	out := make([]string, len(c.names))
	for i, f := range c.names {
		out[i] = string(f)
	}
	return out
}
