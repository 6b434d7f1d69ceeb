package mapping

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

// RunDescriptor carries the run metadata written as QIIME comment lines.
type RunDescriptor struct {
	Comment            string
	Date               string
	Region             string
	Platform           string
	FormattedAccession string
}

// Comment line labels, in the order they follow the QIIME header.
const (
	labelDate      = "Sequencing date: "
	labelRegion    = "Region: "
	labelPlatform  = "Platform: "
	labelAccession = "Bushman lab run accession: "
)

// FormatQIIME renders a QIIME mapping file for the run and returns it as a
// single string. Annotation columns come from Cast.
func FormatQIIME(run RunDescriptor, samples []SampleDescriptor, annotations iter.Seq[Annotation]) string {
	var sb strings.Builder
	// strings.Builder never fails.
	_ = WriteQIIME(&sb, run, samples, annotations)
	return sb.String()
}

// WriteQIIME writes the text produced by FormatQIIME to w.
func WriteQIIME(w io.Writer, run RunDescriptor, samples []SampleDescriptor, annotations iter.Seq[Annotation]) error {
	annotationFields, annotationRows := Cast(samples, annotations)

	header := make([]Field, 0, len(QIIMEIdentityFields)+len(annotationFields)+1)
	header = append(header, QIIMEIdentityFields...)
	header = append(header, annotationFields...)
	header = append(header, QIIMEDescription)

	bw := bufio.NewWriter(w)
	writeLine(bw, CommentMarker+joinFields(header))
	for _, c := range runComments(run) {
		writeLine(bw, CommentMarker+c)
	}
	for i, s := range samples {
		vals := make([]string, 0, len(header))
		vals = append(vals, s.Name, s.Barcode, s.Primer)
		vals = append(vals, annotationRows[i]...)
		vals = append(vals, s.FormattedAccession)
		writeLine(bw, Join(vals))
	}
	return bw.Flush()
}

func runComments(run RunDescriptor) []string {
	return []string{
		run.Comment,
		labelDate + run.Date,
		labelRegion + run.Region,
		labelPlatform + run.Platform,
		labelAccession + run.FormattedAccession,
	}
}

// ParseRunComments recovers a RunDescriptor from the comment lines of a
// QIIME mapping file, as returned by Reader.Comments. Labelled lines are
// matched by prefix; the first unlabelled line is taken as the free-text
// comment. Unrecognised lines are ignored.
func ParseRunComments(comments []string) RunDescriptor {
	var run RunDescriptor
	commentSeen := false
	for _, c := range comments {
		switch {
		case strings.HasPrefix(c, labelDate):
			run.Date = strings.TrimSpace(strings.TrimPrefix(c, labelDate))
		case strings.HasPrefix(c, labelRegion):
			run.Region = strings.TrimSpace(strings.TrimPrefix(c, labelRegion))
		case strings.HasPrefix(c, labelPlatform):
			run.Platform = strings.TrimSpace(strings.TrimPrefix(c, labelPlatform))
		case strings.HasPrefix(c, labelAccession):
			run.FormattedAccession = strings.TrimSpace(strings.TrimPrefix(c, labelAccession))
		case !commentSeen:
			run.Comment = c
			commentSeen = true
		}
	}
	return run
}
