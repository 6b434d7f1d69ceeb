package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampleregistry/internal/blob"
	"sampleregistry/internal/config"
	"sampleregistry/internal/infra/persistence/memory"
	"sampleregistry/internal/observability"
	"sampleregistry/pkg/domain"
	"sampleregistry/pkg/mapping"
)

const registryInput = "sample_name\tbarcode_sequence\tprimer_sequence\thost\tsite\n" +
	"S1\tAGCT\tGTGC\thuman\tgut\n" +
	"S2\tTTTT\tGTGC\tmouse\tNA\n"

var wantQIIME = strings.Join([]string{
	"#SampleID\tBarcodeSequence\tLinkerPrimerSequence\thost\tsite\tDescription",
	"#pilot",
	"#Sequencing date: 2024-03-05",
	"#Region: V4",
	"#Platform: Illumina MiSeq",
	"#Bushman lab run accession: CMR000001",
	"S1\tAGCT\tGTGC\thuman\tgut\tCMS000001",
	"S2\tTTTT\tGTGC\tmouse\tNA\tCMS000002",
	"",
}, "\n")

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu         sync.Mutex
	calls      []metricsCall
	records    map[string]int
	violations int
}

func newCaptureMetrics() *captureMetrics { return &captureMetrics{records: map[string]int{}} }

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetrics) RecordsProcessed(_ context.Context, op string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[op] += n
}

func (c *captureMetrics) ValidationFailures(_ context.Context, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.violations += n
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	blobs   blob.Store
	metrics *captureMetrics
	tracer  *observability.JSONTracer
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	f := fixture{
		store:   memory.NewStore(),
		blobs:   blob.NewMemory(),
		metrics: newCaptureMetrics(),
		tracer:  observability.NewJSONTracer(nil),
		logs:    &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base := []Option{WithLogger(logger), WithMetrics(f.metrics), WithTracer(f.tracer), WithBlobStore(f.blobs)}
	f.svc = NewService(f.store, append(base, opts...)...)
	return f
}

func (f fixture) createRun(t *testing.T) domain.Run {
	t.Helper()
	date, err := domain.ParseRunDate("2024-03-05")
	require.NoError(t, err)
	run, err := f.svc.CreateRun(context.Background(), domain.Run{
		Comment:  "pilot",
		Date:     date,
		Region:   "V4",
		Platform: "Illumina MiSeq",
	})
	require.NoError(t, err)
	return run
}

func TestImportAndExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.createRun(t)

	res, err := f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(registryInput), ImportOptions{})
	require.NoError(t, err)
	require.Len(t, res.Samples, 2)
	assert.Equal(t, 3, res.Annotations)
	assert.Equal(t, "GTGC", res.Samples[0].Primer)

	qiime, err := f.svc.ExportQIIME(ctx, run.Accession)
	require.NoError(t, err)
	assert.Equal(t, wantQIIME, qiime)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportRegistry(ctx, run.Accession, &buf))
	assert.Equal(t, "sample_name\tbarcode_sequence\thost\tprimer_sequence\tsite\n"+
		"S1\tAGCT\thuman\tGTGC\tgut\n"+
		"S2\tTTTT\tmouse\tGTGC\tNA\n", buf.String())

	assert.True(t, f.metrics.has(OpImportMapping, true))
	assert.Equal(t, 2, f.metrics.records[OpImportMapping])
	assert.Contains(t, f.logs.String(), "mapping imported")

	ops := make([]string, 0)
	for _, e := range f.tracer.Entries() {
		ops = append(ops, e.Operation)
	}
	assert.Equal(t, []string{OpCreateRun, OpImportMapping, OpExportQIIME, OpExportRegistry}, ops)
}

func TestImportRejectsInvalidMapping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.createRun(t)

	input := "sample_name\tbarcode_sequence\n" +
		"S1\tAGCT\n" +
		"S1\tAGXT\n" +
		"\tCCCC\n"
	_, err := f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(input), ImportOptions{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Result.Violations, 3)
	assert.ErrorIs(t, err, mapping.ErrInvalidCharacter)
	assert.ErrorIs(t, err, mapping.ErrDuplicate)
	assert.ErrorIs(t, err, mapping.ErrMissingField)
	assert.Equal(t, 3, f.metrics.violations)
	assert.True(t, f.metrics.has(OpImportMapping, false))

	samples, err := f.store.ListSamples(ctx, run.Accession)
	require.NoError(t, err)
	assert.Empty(t, samples, "nothing is registered when validation fails")
}

func TestImportQIIMERoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.createRun(t)
	second := f.createRun(t)

	res, err := f.svc.ImportMapping(ctx, second.Accession, strings.NewReader(wantQIIME), ImportOptions{QIIME: true})
	require.NoError(t, err)
	require.Len(t, res.Samples, 2)
	assert.Equal(t, "GTGC", res.Samples[0].Primer, "LinkerPrimerSequence becomes the sample primer")
	assert.Equal(t, "CMR000001", res.Run.FormattedAccession)
	assert.Equal(t, "Illumina MiSeq", res.Run.Platform)
	assert.Equal(t, first.Descriptor(), res.Run)

	qiime, err := f.svc.ExportQIIME(ctx, second.Accession)
	require.NoError(t, err)
	lines := strings.Split(qiime, "\n")
	assert.Equal(t, "#SampleID\tBarcodeSequence\tLinkerPrimerSequence\thost\tsite\tDescription", lines[0])
	assert.Equal(t, "S1\tAGCT\tGTGC\thuman\tgut\tCMS000001", lines[6])
	assert.Equal(t, "S2\tTTTT\tGTGC\tmouse\tNA\tCMS000002", lines[7])
}

func TestImportDuplicateAndReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.createRun(t)

	_, err := f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(registryInput), ImportOptions{})
	require.NoError(t, err)
	_, err = f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(registryInput), ImportOptions{})
	assert.ErrorIs(t, err, domain.ErrDuplicateSample)

	res, err := f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(registryInput), ImportOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, 3, res.Samples[0].Accession)

	anns, err := f.store.ListAnnotations(ctx, run.Accession)
	require.NoError(t, err)
	assert.Len(t, anns, 3)
}

func TestImportErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ImportMapping(ctx, 99, strings.NewReader(registryInput), ImportOptions{})
	var nf domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 99, nf.ID)

	run := f.createRun(t)
	_, err = f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(""), ImportOptions{})
	assert.ErrorIs(t, err, mapping.ErrFormat)

	conflicting := "#SampleID\tBarcodeSequence\tsample_name\nS1\tAGCT\tdup\n"
	_, err = f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(conflicting), ImportOptions{QIIME: true})
	assert.ErrorIs(t, err, mapping.ErrConflict)
}

func TestPublishQIIME(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.createRun(t)
	_, err := f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(registryInput), ImportOptions{})
	require.NoError(t, err)

	info, err := f.svc.PublishQIIME(ctx, run.Accession)
	require.NoError(t, err)
	assert.Equal(t, "runs/CMR000001/qiime_mapping.tsv", info.Key)
	assert.Equal(t, blob.ContentTypeTSV, info.ContentType)
	assert.Equal(t, "CMR000001", info.Metadata["run-accession"])

	_, rc, err := f.blobs.Get(ctx, info.Key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, wantQIIME, string(body))

	_, err = f.svc.PublishQIIME(ctx, run.Accession)
	require.NoError(t, err, "republishing replaces the previous file")
	assert.Equal(t, 4, f.metrics.records[OpPublishQIIME])
}

func TestPublishWithoutBlobStore(t *testing.T) {
	svc := NewService(memory.NewStore(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err := svc.PublishQIIME(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrNoBlobStore))
}

func TestExportUnknownRun(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ExportQIIME(context.Background(), 7)
	assert.ErrorAs(t, err, new(domain.ErrNotFound))
	assert.Error(t, f.svc.ExportRegistry(context.Background(), 7, io.Discard))
}

func TestCreateRunUsesClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return fixed }))
	run := f.createRun(t)
	assert.Equal(t, fixed, run.CreatedAt)
	assert.Equal(t, "CMR000001", run.FormattedAccession())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	mem, err := OpenStore(ctx, config.StorageConfig{Driver: config.StorageMemory})
	require.NoError(t, err)
	require.NoError(t, mem.Close())

	lite, err := OpenStore(ctx, config.StorageConfig{Driver: config.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	_, err = lite.CreateRun(ctx, domain.Run{Comment: "x"})
	require.NoError(t, err)
	require.NoError(t, lite.Close())

	_, err = OpenStore(ctx, config.StorageConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestPublishAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for range 3 {
		run := f.createRun(t)
		_, err := f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(registryInput), ImportOptions{})
		require.NoError(t, err)
	}

	outcomes, err := f.svc.PublishAll(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.Equal(t, i+1, o.RunAccession)
		assert.NoError(t, o.Err)
	}
	keys, err := f.blobs.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	outcomes, err = f.svc.PublishAll(ctx, []int{42, 3, 2}, 0)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, []int{42, 3, 2}, []int{outcomes[0].RunAccession, outcomes[1].RunAccession, outcomes[2].RunAccession},
		"outcomes follow the requested order")
	assert.ErrorAs(t, outcomes[0].Err, new(domain.ErrNotFound))
	assert.NoError(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)

	spare := make([]int, 0, 4)
	outcomes, err = f.svc.PublishAll(ctx, spare, 1)
	require.NoError(t, err)
	assert.Len(t, outcomes, 3)
	assert.Equal(t, []int{0, 0, 0, 0}, spare[:cap(spare)], "caller's backing array is untouched")
	assert.True(t, f.metrics.has(OpPublishAll, true))
}

func TestImportQIIMEChecksLinkerPrimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	run := f.createRun(t)

	input := "#SampleID\tBarcodeSequence\tLinkerPrimerSequence\tDescription\n" +
		"S1\tAGCT\tZZ!!\tx\n"
	_, err := f.svc.ImportMapping(ctx, run.Accession, strings.NewReader(input), ImportOptions{QIIME: true})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, mapping.ErrInvalidCharacter)
	var ice *mapping.InvalidCharacterError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, mapping.FieldPrimerSequence, ice.Field)

	samples, err := f.store.ListSamples(ctx, run.Accession)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
