// Package mapping parses, creates, validates and converts tab-delimited
// mapping files describing sequencing samples.
//
// Two dialects are supported. Registry mapping files carry a plain header
// line whose first two columns are sample_name and barcode_sequence. QIIME
// mapping files carry a '#'-prefixed header starting with SampleID and
// BarcodeSequence, a block of run comments, and a trailing Description
// column.
//
// Typical flows:
//
//	records, err := mapping.Collect(mapping.ConvertFromQIIME(mapping.Parse(r)))
//	if err != nil { ... }
//	if err := mapping.Validate(slices.Values(records)); err != nil { ... }
//	err = mapping.WriteRegistry(w, records)
//
// Values are never quoted or escaped. A tab or newline embedded in a value
// corrupts the output.
//
// The package holds no state between calls and performs no logging.
package mapping
