package mapping

import (
	"bufio"
	"io"
)

// RegistryColumns computes the column order used by WriteRegistry: the core
// fields first, then every other field in first-seen order. Within a record
// fields are visited in lexicographic order so the result is deterministic.
func RegistryColumns(records []Record) *Columns {
	cols := NewColumns(CoreFields...)
	for _, rec := range records {
		for _, key := range rec.Keys() {
			cols.Add(key)
		}
	}
	return cols
}

// RegistryRow lays rec out along cols, writing NA into cells rec does not
// populate. Fields of rec absent from cols are ignored.
func RegistryRow(cols *Columns, rec Record) []string {
	row := make([]string, cols.Len())
	for i := range row {
		row[i] = NA
	}
	for key, val := range rec {
		if idx, ok := cols.Index(key); ok {
			row[idx] = val
		}
	}
	return row
}

// WriteRegistry writes records to w as a registry mapping file: a header
// line followed by one line per record.
func WriteRegistry(w io.Writer, records []Record) error {
	cols := RegistryColumns(records)
	bw := bufio.NewWriter(w)
	writeLine(bw, Join(cols.Strings()))
	for _, rec := range records {
		writeLine(bw, Join(RegistryRow(cols, rec)))
	}
	return bw.Flush()
}

// writeLine relies on bufio.Writer latching the first error until Flush.
func writeLine(bw *bufio.Writer, line string) {
	_, _ = bw.WriteString(line)
	_ = bw.WriteByte('\n')
}
