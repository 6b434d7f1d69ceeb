// Package memory provides an in-memory implementation of the registry store
// used for tests, ephemeral environments, and as the working set of the
// snapshotting SQL drivers.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"sampleregistry/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.Store = (*Store)(nil)

type (
	// Run aliases domain.Run.
	Run = domain.Run
	// Sample aliases domain.Sample.
	Sample = domain.Sample
	// Annotation aliases domain.Annotation.
	Annotation = domain.Annotation
)

type memoryState struct {
	runs        map[int]Run
	samples     map[int]Sample
	annotations map[int][]Annotation // keyed by sample accession, registration order
	nextRun     int
	nextSample  int
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Runs        map[int]Run          `json:"runs"`
	Samples     map[int]Sample       `json:"samples"`
	Annotations map[int][]Annotation `json:"annotations"`
	Counters    Counters             `json:"counters"`
}

// Counters hold the next accessions to hand out. They outlive the records
// they numbered so accessions are never reused.
type Counters struct {
	NextRun    int `json:"next_run"`
	NextSample int `json:"next_sample"`
}

func newMemoryState() memoryState {
	return memoryState{
		runs:        make(map[int]Run),
		samples:     make(map[int]Sample),
		annotations: make(map[int][]Annotation),
		nextRun:     1,
		nextSample:  1,
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Runs:        maps.Clone(state.runs),
		Samples:     maps.Clone(state.samples),
		Annotations: make(map[int][]Annotation, len(state.annotations)),
		Counters:    Counters{NextRun: state.nextRun, NextSample: state.nextSample},
	}
	for k, v := range state.annotations {
		s.Annotations[k] = slices.Clone(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	state.nextRun = max(state.nextRun, s.Counters.NextRun)
	state.nextSample = max(state.nextSample, s.Counters.NextSample)
	for k, v := range s.Runs {
		state.runs[k] = v
		state.nextRun = max(state.nextRun, k+1)
	}
	for k, v := range s.Samples {
		state.samples[k] = v
		state.nextSample = max(state.nextSample, k+1)
	}
	for k, v := range s.Annotations {
		state.annotations[k] = slices.Clone(v)
	}
	return state
}

// Store is a mutex-guarded in-memory registry.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	now   func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{state: newMemoryState(), now: func() time.Time { return time.Now().UTC() }}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// CreateRun assigns the next run accession and stores the run.
func (s *Store) CreateRun(ctx context.Context, run Run) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run.Accession = s.state.nextRun
	s.state.nextRun++
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	s.state.runs[run.Accession] = run
	return run, nil
}

// GetRun returns the run with the given accession.
func (s *Store) GetRun(ctx context.Context, accession int) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.state.runs[accession]
	if !ok {
		return Run{}, domain.ErrNotFound{Entity: domain.EntityRun, ID: accession}
	}
	return run, nil
}

// ListRuns returns all runs ordered by accession.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.state.runs))
	for _, acc := range slices.Sorted(maps.Keys(s.state.runs)) {
		out = append(out, s.state.runs[acc])
	}
	return out, nil
}

// RegisterSamples stores samples under the run, all or nothing.
func (s *Store) RegisterSamples(ctx context.Context, runAccession int, samples []Sample) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.runs[runAccession]; !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityRun, ID: runAccession}
	}
	names := make(map[string]struct{})
	for _, existing := range s.state.samples {
		if existing.RunAccession == runAccession {
			names[existing.Name] = struct{}{}
		}
	}
	for _, sample := range samples {
		if _, dup := names[sample.Name]; dup {
			return nil, domain.DuplicateSampleError{RunAccession: runAccession, Name: sample.Name}
		}
		names[sample.Name] = struct{}{}
	}
	out := make([]Sample, len(samples))
	for i, sample := range samples {
		sample.Accession = s.state.nextSample
		sample.RunAccession = runAccession
		s.state.nextSample++
		s.state.samples[sample.Accession] = sample
		out[i] = sample
	}
	return out, nil
}

// ListSamples returns the samples of a run ordered by accession.
func (s *Store) ListSamples(ctx context.Context, runAccession int) ([]Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.runs[runAccession]; !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityRun, ID: runAccession}
	}
	return s.runSamples(runAccession), nil
}

func (s *Store) runSamples(runAccession int) []Sample {
	var out []Sample
	for _, acc := range slices.Sorted(maps.Keys(s.state.samples)) {
		if sample := s.state.samples[acc]; sample.RunAccession == runAccession {
			out = append(out, sample)
		}
	}
	return out
}

// RemoveSamples deletes every sample of the run and their annotations.
func (s *Store) RemoveSamples(ctx context.Context, runAccession int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.runs[runAccession]; !ok {
		return 0, domain.ErrNotFound{Entity: domain.EntityRun, ID: runAccession}
	}
	removed := 0
	for acc, sample := range s.state.samples {
		if sample.RunAccession != runAccession {
			continue
		}
		delete(s.state.samples, acc)
		delete(s.state.annotations, acc)
		removed++
	}
	return removed, nil
}

// RegisterAnnotations upserts annotations by sample and key. Every referenced
// sample must exist; nothing is stored otherwise.
func (s *Store) RegisterAnnotations(ctx context.Context, annotations []Annotation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range annotations {
		if _, ok := s.state.samples[a.SampleAccession]; !ok {
			return domain.ErrNotFound{Entity: domain.EntitySample, ID: a.SampleAccession}
		}
		if a.Key == "" {
			return fmt.Errorf("annotation for sample %d has empty key", a.SampleAccession)
		}
	}
	for _, a := range annotations {
		list := s.state.annotations[a.SampleAccession]
		idx := slices.IndexFunc(list, func(existing Annotation) bool { return existing.Key == a.Key })
		if idx >= 0 {
			list[idx].Value = a.Value
			continue
		}
		s.state.annotations[a.SampleAccession] = append(list, a)
	}
	return nil
}

// ListAnnotations returns the annotations of the run's samples.
func (s *Store) ListAnnotations(ctx context.Context, runAccession int) ([]Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.state.runs[runAccession]; !ok {
		return nil, domain.ErrNotFound{Entity: domain.EntityRun, ID: runAccession}
	}
	var out []Annotation
	for _, sample := range s.runSamples(runAccession) {
		out = append(out, s.state.annotations[sample.Accession]...)
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }
