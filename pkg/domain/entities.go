// Package domain defines the sample registry entities and the persistence
// contract implemented by the storage drivers.
package domain

import (
	"fmt"
	"strconv"
	"time"

	"sampleregistry/pkg/mapping"
)

// EntityType identifies the type of registry record.
type EntityType string

// Registry entity types.
const (
	EntityRun        EntityType = "run"
	EntitySample     EntityType = "sample"
	EntityAnnotation EntityType = "annotation"
)

// DateLayout is the layout used to render sequencing dates.
const DateLayout = "2006-01-02"

// Run describes one sequencing run.
type Run struct {
	Accession   int       `json:"accession"`
	Comment     string    `json:"comment"`
	Date        time.Time `json:"date"`
	Region      string    `json:"region"`
	Platform    string    `json:"platform"`
	MachineType string    `json:"machine_type,omitempty"`
	MachineKit  string    `json:"machine_kit,omitempty"`
	Lane        int       `json:"lane,omitempty"`
	DataURI     string    `json:"data_uri,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// FormattedAccession renders the run accession as CMR followed by six digits.
func (r Run) FormattedAccession() string {
	return fmt.Sprintf("CMR%06d", r.Accession)
}

// Descriptor returns the run metadata written into QIIME mapping files.
func (r Run) Descriptor() mapping.RunDescriptor {
	date := ""
	if !r.Date.IsZero() {
		date = r.Date.Format(DateLayout)
	}
	return mapping.RunDescriptor{
		Comment:            r.Comment,
		Date:               date,
		Region:             r.Region,
		Platform:           r.Platform,
		FormattedAccession: r.FormattedAccession(),
	}
}

// Sample is a barcoded sample sequenced in a run.
type Sample struct {
	Accession    int    `json:"accession"`
	RunAccession int    `json:"run_accession"`
	Name         string `json:"name"`
	Barcode      string `json:"barcode"`
	Primer       string `json:"primer,omitempty"`
}

// FormattedAccession renders the sample accession as CMS followed by six digits.
func (s Sample) FormattedAccession() string {
	return fmt.Sprintf("CMS%06d", s.Accession)
}

// Descriptor returns the identity columns written into QIIME mapping files.
func (s Sample) Descriptor() mapping.SampleDescriptor {
	return mapping.SampleDescriptor{
		Name:               s.Name,
		Barcode:            s.Barcode,
		Primer:             s.Primer,
		Accession:          strconv.Itoa(s.Accession),
		FormattedAccession: s.FormattedAccession(),
	}
}

// Annotation is a free-form key/value attached to a sample.
type Annotation struct {
	SampleAccession int    `json:"sample_accession"`
	Key             string `json:"key"`
	Value           string `json:"value"`
}

// Triple converts the annotation into an EAV triple for mapping.Cast.
func (a Annotation) Triple() mapping.Annotation {
	return mapping.Annotation{
		SampleAccession: strconv.Itoa(a.SampleAccession),
		Field:           mapping.Field(a.Key),
		Value:           a.Value,
	}
}

// SampleDescriptors converts samples for mapping.FormatQIIME, keeping order.
func SampleDescriptors(samples []Sample) []mapping.SampleDescriptor {
	out := make([]mapping.SampleDescriptor, len(samples))
	for i, s := range samples {
		out[i] = s.Descriptor()
	}
	return out
}
