package mapping

// CoreValues holds the core registry fields of one record. Absent fields are
// empty strings.
type CoreValues struct {
	SampleName      string
	BarcodeSequence string
}

// KeyValue is one annotation of a record.
type KeyValue struct {
	Key   Field
	Value string
}

// Split separates a record into its core fields and its annotations.
type Split struct {
	Core        CoreValues
	Annotations []KeyValue
}

// SplitRecord partitions rec. Annotations are returned sorted by key.
func SplitRecord(rec Record) Split {
	s := Split{Core: CoreValues{
		SampleName:      rec[FieldSampleName],
		BarcodeSequence: rec[FieldBarcodeSequence],
	}}
	for _, key := range rec.Keys() {
		if key == FieldSampleName || key == FieldBarcodeSequence {
			continue
		}
		s.Annotations = append(s.Annotations, KeyValue{Key: key, Value: rec[key]})
	}
	return s
}

// SplitAnnotations applies SplitRecord to each record, preserving order.
func SplitAnnotations(records []Record) []Split {
	out := make([]Split, len(records))
	for i, rec := range records {
		out[i] = SplitRecord(rec)
	}
	return out
}

// Triples re-expresses the annotations of s as EAV triples for the sample
// with the given accession.
func (s Split) Triples(accession string) []Annotation {
	out := make([]Annotation, len(s.Annotations))
	for i, kv := range s.Annotations {
		out[i] = Annotation{SampleAccession: accession, Field: kv.Key, Value: kv.Value}
	}
	return out
}
