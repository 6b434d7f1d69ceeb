package domain

import (
	"sampleregistry/pkg/mapping"
)

// Records folds samples and their annotations back into registry mapping
// records, one per sample in the order given. The primer is exported as
// primer_sequence when set.
func Records(samples []Sample, annotations []Annotation) []mapping.Record {
	bySample := make(map[int][]Annotation, len(samples))
	for _, a := range annotations {
		bySample[a.SampleAccession] = append(bySample[a.SampleAccession], a)
	}
	out := make([]mapping.Record, len(samples))
	for i, s := range samples {
		rec := mapping.Record{mapping.FieldSampleName: s.Name}
		if s.Barcode != "" {
			rec[mapping.FieldBarcodeSequence] = s.Barcode
		}
		if s.Primer != "" {
			rec[mapping.FieldPrimerSequence] = s.Primer
		}
		for _, a := range bySample[s.Accession] {
			key := mapping.Field(a.Key)
			if _, core := rec[key]; core {
				continue
			}
			rec[key] = a.Value
		}
		out[i] = rec
	}
	return out
}

// SampleFromSplit builds an unregistered sample from a split mapping record.
// A primer_sequence (or QIIME LinkerPrimerSequence) annotation becomes the
// sample primer and is removed from the returned annotations.
func SampleFromSplit(runAccession int, s mapping.Split) (Sample, []mapping.KeyValue) {
	sample := Sample{
		RunAccession: runAccession,
		Name:         s.Core.SampleName,
		Barcode:      s.Core.BarcodeSequence,
	}
	rest := make([]mapping.KeyValue, 0, len(s.Annotations))
	for _, kv := range s.Annotations {
		if kv.Key == mapping.FieldPrimerSequence || kv.Key == mapping.QIIMELinkerPrimerSequence {
			sample.Primer = kv.Value
			continue
		}
		rest = append(rest, kv)
	}
	return sample, rest
}
