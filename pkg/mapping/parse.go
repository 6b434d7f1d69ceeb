package mapping

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

const maxLineBytes = 1 << 20

// Reader reads records from a mapping file. The first line is the header;
// a single leading comment marker on it is ignored.
type Reader struct {
	scanner  *bufio.Scanner
	header   []Field
	line     int
	comments []string
	err      error
}

// NewReader reads the header line from r and returns a Reader positioned at
// the first data line. A missing header or a blank column name yields a
// *FormatError.
func NewReader(r io.Reader) (*Reader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	rd := &Reader{scanner: sc}
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, &FormatError{Line: 1, Reason: "missing header line"}
	}
	rd.line = 1
	toks := Tokenize(strings.TrimPrefix(sc.Text(), CommentMarker))
	rd.header = make([]Field, len(toks))
	for i, t := range toks {
		if t == "" {
			return nil, &FormatError{Line: 1, Column: i + 1, Reason: "blank column name in header"}
		}
		rd.header[i] = Field(t)
	}
	return rd, nil
}

// Header returns a copy of the column names read from the header line.
func (rd *Reader) Header() []Field {
	out := make([]Field, len(rd.header))
	copy(out, rd.header)
	return out
}

// Comments returns the comment lines skipped so far, without the marker.
func (rd *Reader) Comments() []string {
	out := make([]string, len(rd.comments))
	copy(out, rd.comments)
	return out
}

// Line returns the number of the most recently read line.
func (rd *Reader) Line() int { return rd.line }

// Read returns the next record, or io.EOF once the input is exhausted.
// Values that are missing-value tokens are left out of the record. Rows
// shorter than the header simply lack the trailing fields; surplus values
// beyond the header are dropped.
func (rd *Reader) Read() (Record, error) {
	if rd.err != nil {
		return nil, rd.err
	}
	for rd.scanner.Scan() {
		rd.line++
		text := rd.scanner.Text()
		if strings.HasPrefix(text, CommentMarker) {
			rd.comments = append(rd.comments, strings.TrimRight(strings.TrimPrefix(text, CommentMarker), "\r"))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		vals := Tokenize(text)
		rec := make(Record, len(rd.header))
		for i, key := range rd.header {
			if i >= len(vals) {
				break
			}
			if IsMissing(vals[i]) {
				continue
			}
			rec[key] = vals[i]
		}
		return rec, nil
	}
	if err := rd.scanner.Err(); err != nil {
		rd.err = err
		return nil, err
	}
	rd.err = io.EOF
	return nil, io.EOF
}

// All returns a single-use sequence over the remaining records. Iteration
// stops after the first error, which is yielded with a nil record.
func (rd *Reader) All() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := rd.Read()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Parse returns a lazy sequence of records read from r. A header error is
// yielded as the first and only element.
func Parse(r io.Reader) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		rd, err := NewReader(r)
		if err != nil {
			yield(nil, err)
			return
		}
		for rec, err := range rd.All() {
			if !yield(rec, err) {
				return
			}
		}
	}
}

// Collect drains seq, returning the records read before the first error.
func Collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	var out []Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}
