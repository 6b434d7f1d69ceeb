package domain

import (
	"context"
	"errors"
	"fmt"
)

// Store persists runs, samples and their annotations.
type Store interface {
	CreateRun(ctx context.Context, run Run) (Run, error)
	GetRun(ctx context.Context, accession int) (Run, error)
	ListRuns(ctx context.Context) ([]Run, error)

	// RegisterSamples assigns accessions to samples and attaches them to the
	// run. Sample names must be unique within a run.
	RegisterSamples(ctx context.Context, runAccession int, samples []Sample) ([]Sample, error)
	// ListSamples returns the samples of a run ordered by accession.
	ListSamples(ctx context.Context, runAccession int) ([]Sample, error)
	// RemoveSamples deletes the samples of a run together with their annotations.
	RemoveSamples(ctx context.Context, runAccession int) (int, error)

	// RegisterAnnotations stores annotations, replacing any existing value
	// for the same sample and key.
	RegisterAnnotations(ctx context.Context, annotations []Annotation) error
	// ListAnnotations returns the annotations of every sample in a run,
	// ordered by sample accession and then by first registration.
	ListAnnotations(ctx context.Context, runAccession int) ([]Annotation, error)

	Close() error
}

// ErrNotFound is returned when a referenced record does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     int
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ErrDuplicateSample is matched by errors.Is for sample uniqueness failures.
var ErrDuplicateSample = errors.New("duplicate sample")

// DuplicateSampleError reports a sample name already registered in a run.
type DuplicateSampleError struct {
	RunAccession int
	Name         string
}

func (e DuplicateSampleError) Error() string {
	return fmt.Sprintf("sample %q already registered in run %d", e.Name, e.RunAccession)
}

// Is reports whether target is ErrDuplicateSample.
func (e DuplicateSampleError) Is(target error) bool { return target == ErrDuplicateSample }
