package mapping

import "iter"

// ConvertRecord renames the QIIME identity columns of r to their registry
// equivalents and drops the Description column, which QIIME exports often
// fill with junk and which is regenerated on export. r is not modified.
//
// A *ConflictError is returned when a registry column is already present.
func ConvertRecord(r Record) (Record, error) {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	delete(out, QIIMEDescription)
	for _, rn := range QIIMERenames {
		if _, ok := out[rn.Core]; ok {
			return nil, &ConflictError{Field: rn.Core, Record: r}
		}
		if val, ok := out[rn.QIIME]; ok {
			delete(out, rn.QIIME)
			out[rn.Core] = val
		}
	}
	return out, nil
}

// ConvertFromQIIME lazily applies ConvertRecord to every record of seq.
// Iteration stops at the first error.
func ConvertFromQIIME(seq iter.Seq2[Record, error]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for rec, err := range seq {
			if err == nil {
				rec, err = ConvertRecord(rec)
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// AdoptLinkerPrimer moves each record's LinkerPrimerSequence into
// primer_sequence so the primer is checked and stored like a registry one.
// Records are modified in place. A *ConflictError is returned for the first
// record that carries both columns.
func AdoptLinkerPrimer(records []Record) error {
	for _, rec := range records {
		val, ok := rec[QIIMELinkerPrimerSequence]
		if !ok {
			continue
		}
		if _, dup := rec[FieldPrimerSequence]; dup {
			return &ConflictError{Field: FieldPrimerSequence, Record: rec}
		}
		delete(rec, QIIMELinkerPrimerSequence)
		rec[FieldPrimerSequence] = val
	}
	return nil
}
