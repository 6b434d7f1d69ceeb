package mapping

import (
	"iter"
	"strings"
)

// Annotation is one entity-attribute-value triple attached to a sample by
// accession.
type Annotation struct {
	SampleAccession string
	Field           Field
	Value           string
}

// SampleDescriptor carries the identity columns of one sample in a QIIME
// mapping file.
type SampleDescriptor struct {
	Name               string
	Barcode            string
	Primer             string
	Accession          string
	FormattedAccession string
}

const descriptionKey = "description"

// Cast pivots annotations into a table aligned with samples.
//
// fields lists the annotation columns in first-seen order and rows[i] holds
// the values for samples[i], with NA where no annotation was supplied.
// Annotations for accessions not present in samples are dropped, as are
// annotations named "description" in any letter case. Field names are
// matched case-sensitively and a later annotation for the same sample and
// field replaces an earlier one. When two samples share an accession the
// first one receives the annotations.
func Cast(samples []SampleDescriptor, annotations iter.Seq[Annotation]) ([]Field, [][]string) {
	positions := make(map[string]int, len(samples))
	for i, s := range samples {
		if _, ok := positions[s.Accession]; !ok {
			positions[s.Accession] = i
		}
	}
	fields := NewColumns()
	rows := make([][]string, len(samples))
	for i := range rows {
		rows[i] = []string{}
	}
	if annotations == nil {
		return fields.Names(), rows
	}
	for a := range annotations {
		sampleIdx, ok := positions[a.SampleAccession]
		if !ok {
			continue
		}
		if strings.ToLower(string(a.Field)) == descriptionKey {
			continue
		}
		if fields.Add(a.Field) {
			for i := range rows {
				rows[i] = append(rows[i], NA)
			}
		}
		fieldIdx, _ := fields.Index(a.Field)
		rows[sampleIdx][fieldIdx] = a.Value
	}
	return fields.Names(), rows
}
