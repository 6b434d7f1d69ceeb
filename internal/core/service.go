// Package core implements the registry workflows that move mapping files in
// and out of the sample registry.
package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"sampleregistry/internal/blob"
	"sampleregistry/pkg/domain"
	"sampleregistry/pkg/mapping"
)

// Operation names reported to metrics, traces and logs.
const (
	OpCreateRun      = "create_run"
	OpImportMapping  = "import_mapping"
	OpExportQIIME    = "export_qiime"
	OpExportRegistry = "export_registry"
	OpPublishQIIME   = "publish_qiime"
)

// ErrNoBlobStore is returned by PublishQIIME when no blob store is configured.
var ErrNoBlobStore = errors.New("no blob store configured")

// Service coordinates the mapping library with the registry store.
type Service struct {
	store   domain.Store
	blobs   blob.Store
	logger  *slog.Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithBlobStore sets where PublishQIIME writes mapping files.
func WithBlobStore(b blob.Store) Option {
	return func(s *Service) { s.blobs = b }
}

// WithClock overrides the clock used for run creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service backed by store.
func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  slog.Default(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying registry store.
func (s *Service) Store() domain.Store { return s.store }

// instrument runs fn inside a span and records its outcome.
func (s *Service) instrument(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.now()
	err := fn(ctx)
	elapsed := s.now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "operation failed",
			slog.String("operation", op), slog.Duration("elapsed", elapsed), slog.Any("error", err))
	} else {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "operation complete",
			slog.String("operation", op), slog.Duration("elapsed", elapsed))
	}
	return err
}

// CreateRun registers a sequencing run.
func (s *Service) CreateRun(ctx context.Context, run domain.Run) (domain.Run, error) {
	var created domain.Run
	err := s.instrument(ctx, OpCreateRun, func(ctx context.Context) error {
		if run.CreatedAt.IsZero() {
			run.CreatedAt = s.now()
		}
		var err error
		created, err = s.store.CreateRun(ctx, run)
		if err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		s.logger.Info("run created", "run", created.FormattedAccession(), "platform", created.Platform)
		return nil
	})
	return created, err
}

// ImportOptions controls ImportMapping.
type ImportOptions struct {
	// QIIME marks the input as a QIIME mapping file to convert first.
	QIIME bool
	// Replace removes the run's existing samples before registering.
	Replace bool
}

// ImportResult summarises a successful import.
type ImportResult struct {
	Samples     []domain.Sample
	Annotations int
	Removed     int
	// Run carries the run metadata found in QIIME comment lines, if any.
	Run mapping.RunDescriptor
}

// ValidationError reports every record the validator rejected.
type ValidationError struct {
	Result mapping.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mapping failed validation with %d violation(s): %v", len(e.Result.Violations), e.Result.Err())
}

// Unwrap exposes the individual violations to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	out := make([]error, len(e.Result.Violations))
	for i, v := range e.Result.Violations {
		out[i] = v.Err
	}
	return out
}

// ImportMapping parses a mapping file, validates it and registers its samples
// and annotations under the run. Nothing is registered unless the whole file
// validates.
func (s *Service) ImportMapping(ctx context.Context, runAccession int, r io.Reader, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	err := s.instrument(ctx, OpImportMapping, func(ctx context.Context) error {
		if _, err := s.store.GetRun(ctx, runAccession); err != nil {
			return err
		}
		rd, err := mapping.NewReader(r)
		if err != nil {
			return fmt.Errorf("read mapping: %w", err)
		}
		seq := rd.All()
		if opts.QIIME {
			seq = mapping.ConvertFromQIIME(seq)
		}
		records, err := mapping.Collect(seq)
		if err != nil {
			return fmt.Errorf("read mapping: %w", err)
		}
		if opts.QIIME {
			if err := mapping.AdoptLinkerPrimer(records); err != nil {
				return fmt.Errorf("read mapping: %w", err)
			}
			res.Run = mapping.ParseRunComments(rd.Comments())
		}
		s.metrics.RecordsProcessed(ctx, OpImportMapping, len(records))

		if check := mapping.Check(slices.Values(records)); !check.OK() {
			s.metrics.ValidationFailures(ctx, len(check.Violations))
			return &ValidationError{Result: check}
		}

		if opts.Replace {
			removed, err := s.store.RemoveSamples(ctx, runAccession)
			if err != nil {
				return fmt.Errorf("remove samples: %w", err)
			}
			res.Removed = removed
		}

		splits := mapping.SplitAnnotations(records)
		samples := make([]domain.Sample, len(splits))
		pending := make([][]mapping.KeyValue, len(splits))
		for i, sp := range splits {
			samples[i], pending[i] = domain.SampleFromSplit(runAccession, sp)
		}
		registered, err := s.store.RegisterSamples(ctx, runAccession, samples)
		if err != nil {
			return fmt.Errorf("register samples: %w", err)
		}
		var annotations []domain.Annotation
		for i, sample := range registered {
			for _, kv := range pending[i] {
				annotations = append(annotations, domain.Annotation{
					SampleAccession: sample.Accession,
					Key:             string(kv.Key),
					Value:           kv.Value,
				})
			}
		}
		if len(annotations) > 0 {
			if err := s.store.RegisterAnnotations(ctx, annotations); err != nil {
				return fmt.Errorf("register annotations: %w", err)
			}
		}
		res.Samples = registered
		res.Annotations = len(annotations)
		s.logger.Info("mapping imported",
			"run", runAccession, "samples", len(registered), "annotations", len(annotations), "replaced", res.Removed)
		return nil
	})
	return res, err
}

type runContents struct {
	run         domain.Run
	samples     []domain.Sample
	annotations []domain.Annotation
}

func (s *Service) loadRun(ctx context.Context, runAccession int) (runContents, error) {
	run, err := s.store.GetRun(ctx, runAccession)
	if err != nil {
		return runContents{}, err
	}
	samples, err := s.store.ListSamples(ctx, runAccession)
	if err != nil {
		return runContents{}, fmt.Errorf("list samples: %w", err)
	}
	annotations, err := s.store.ListAnnotations(ctx, runAccession)
	if err != nil {
		return runContents{}, fmt.Errorf("list annotations: %w", err)
	}
	return runContents{run: run, samples: samples, annotations: annotations}, nil
}

func triples(annotations []domain.Annotation) iter.Seq[mapping.Annotation] {
	return func(yield func(mapping.Annotation) bool) {
		for _, a := range annotations {
			if !yield(a.Triple()) {
				return
			}
		}
	}
}

func (c runContents) writeQIIME(w io.Writer) error {
	return mapping.WriteQIIME(w, c.run.Descriptor(), domain.SampleDescriptors(c.samples), triples(c.annotations))
}

// ExportQIIME renders the run as a QIIME mapping file.
func (s *Service) ExportQIIME(ctx context.Context, runAccession int) (string, error) {
	var sb strings.Builder
	err := s.instrument(ctx, OpExportQIIME, func(ctx context.Context) error {
		contents, err := s.loadRun(ctx, runAccession)
		if err != nil {
			return err
		}
		s.metrics.RecordsProcessed(ctx, OpExportQIIME, len(contents.samples))
		return contents.writeQIIME(&sb)
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ExportRegistry writes the run's samples and annotations to w as a
// registry mapping file.
func (s *Service) ExportRegistry(ctx context.Context, runAccession int, w io.Writer) error {
	return s.instrument(ctx, OpExportRegistry, func(ctx context.Context) error {
		contents, err := s.loadRun(ctx, runAccession)
		if err != nil {
			return err
		}
		records := domain.Records(contents.samples, contents.annotations)
		s.metrics.RecordsProcessed(ctx, OpExportRegistry, len(records))
		if err := mapping.WriteRegistry(w, records); err != nil {
			return fmt.Errorf("write registry: %w", err)
		}
		return nil
	})
}

// PublishKey is the blob key of a run's published QIIME mapping file.
func PublishKey(run domain.Run) string {
	return "runs/" + run.FormattedAccession() + "/qiime_mapping.tsv"
}

// PublishQIIME renders the run as a QIIME mapping file and stores it in the
// blob store, replacing any previous publication.
func (s *Service) PublishQIIME(ctx context.Context, runAccession int) (blob.Info, error) {
	var info blob.Info
	err := s.instrument(ctx, OpPublishQIIME, func(ctx context.Context) error {
		if s.blobs == nil {
			return ErrNoBlobStore
		}
		contents, err := s.loadRun(ctx, runAccession)
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := contents.writeQIIME(&buf); err != nil {
			return err
		}
		key := PublishKey(contents.run)
		info, err = s.blobs.Put(ctx, key, &buf, blob.PutOptions{
			ContentType: blob.ContentTypeTSV,
			Metadata: map[string]string{
				"run-accession": contents.run.FormattedAccession(),
				"samples":       fmt.Sprint(len(contents.samples)),
			},
			Overwrite: true,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", key, err)
		}
		s.metrics.RecordsProcessed(ctx, OpPublishQIIME, len(contents.samples))
		s.logger.Info("mapping published", "run", contents.run.FormattedAccession(), "key", key, "driver", s.blobs.Driver())
		return nil
	})
	return info, err
}
