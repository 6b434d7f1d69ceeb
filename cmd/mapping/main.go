// Command mapping validates, converts and moves sample mapping files in and
// out of the sample registry.
//
//	mapping validate FILE [--qiime]
//	mapping convert FILE [-o OUT]
//	mapping create-run --comment C --date D --region R --platform P
//	mapping runs
//	mapping import --run N FILE [--qiime] [--replace]
//	mapping export --run N [--format qiime|registry] [-o OUT]
//	mapping publish --run N | --all [--concurrency N]
//
// Input files may be gzip, xz, bzip2 or zstd compressed. Outputs ending in
// .gz or .zst are compressed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"sampleregistry/internal/blob"
	"sampleregistry/internal/config"
	"sampleregistry/internal/core"
	"sampleregistry/internal/observability"
	"sampleregistry/internal/textio"
	"sampleregistry/pkg/domain"
	"sampleregistry/pkg/mapping"
)

var exitFunc = os.Exit

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

// usageError marks failures caused by the invocation itself (exit code 2).
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// errViolations is returned when validation found problems that were
// already reported.
var errViolations = errors.New("mapping has violations")

type command struct {
	summary string
	run     func(a *app, args []string) error
}

var commands = map[string]command{
	"validate":   {"check a mapping file and report every violation", runValidate},
	"convert":    {"convert a QIIME mapping file to registry format", runConvert},
	"create-run": {"register a sequencing run", runCreateRun},
	"runs":       {"list registered runs", runListRuns},
	"import":     {"register the samples of a mapping file under a run", runImport},
	"export":     {"write a run as a QIIME or registry mapping file", runExport},
	"publish":    {"store a run's QIIME mapping file in the blob store", runPublish},
}

func cli(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		printUsage(stderr)
		return 2
	}
	a := &app{name: args[0], stdout: stdout, stderr: stderr}
	err := cmd.run(a, args[1:])
	if ferr := a.finish(); err == nil {
		err = ferr
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, errViolations):
		return 1
	}
	var uerr usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "%s: %v\n", a.name, err)
		return 2
	}
	a.red().Fprintf(stderr, "%s: %v\n", a.name, err)
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: mapping <command> [flags]")
	fmt.Fprintln(w)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-11s %s\n", name, commands[name].summary)
	}
}

// app carries the state shared by one command invocation.
type app struct {
	name   string
	stdout io.Writer
	stderr io.Writer

	configPath  string
	logLevel    string
	metricsFile string
	noColor     bool

	cfg     config.Config
	logger  *slog.Logger
	metrics *observability.PrometheusRecorder
}

func (a *app) flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(a.name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&a.configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	fs.StringVar(&a.logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	fs.StringVar(&a.metricsFile, "metrics-file", "", "write prometheus metrics to this file on exit")
	fs.BoolVar(&a.noColor, "no-color", false, "disable coloured output")
	return fs
}

func (a *app) parse(fs *pflag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, usageError{msg: err.Error()}
	}
	rest := fs.Args()
	if len(rest) != positional {
		return nil, usagef("expected %d argument(s), got %d", positional, len(rest))
	}
	return rest, nil
}

func (a *app) colour(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if a.noColor {
		c.DisableColor()
	}
	return c
}

func (a *app) green() *color.Color { return a.colour(color.FgGreen) }
func (a *app) red() *color.Color   { return a.colour(color.FgRed) }

// setup resolves configuration and builds the logger and metrics recorder.
func (a *app) setup() error {
	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return usageError{msg: err.Error()}
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(a.stderr, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(a.stderr, opts)
	}
	a.cfg = cfg
	a.logger = slog.New(handler)
	a.metrics, err = observability.NewPrometheusRecorder()
	return err
}

func (a *app) finish() error {
	if a.metricsFile == "" || a.metrics == nil {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// service opens the registry store (and blob store when needed) and returns
// a ready service with a cleanup function.
func (a *app) service(ctx context.Context, withBlobs bool) (*core.Service, func(), error) {
	if err := a.setup(); err != nil {
		return nil, nil, err
	}
	store, err := core.OpenStore(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
	opts := []core.Option{core.WithLogger(a.logger), core.WithMetrics(a.metrics)}
	if withBlobs {
		blobs, err := blob.Open(ctx, a.cfg.Blob)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open blob store: %w", err)
		}
		opts = append(opts, core.WithBlobStore(blobs))
	}
	return core.NewService(store, opts...), cleanup, nil
}

func readRecords(path string, qiime bool) (records []mapping.Record, err error) {
	in, err := textio.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	seq := mapping.Parse(in)
	if qiime {
		seq = mapping.ConvertFromQIIME(seq)
	}
	return mapping.Collect(seq)
}

// writeOutput writes to the command's stdout for "-" and to a (possibly
// compressed) file otherwise.
func (a *app) writeOutput(path string, write func(io.Writer) error) (err error) {
	var out io.WriteCloser
	if path == textio.Stdio || path == "" {
		out, err = textio.NewWriter(a.stdout, textio.FormatPlain)
	} else {
		out, err = textio.Create(path)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(out)
}

func runValidate(a *app, args []string) error {
	fs := a.flagSet()
	qiime := fs.Bool("qiime", false, "input is a QIIME mapping file")
	rest, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := a.setup(); err != nil {
		return err
	}
	ctx := context.Background()
	records, err := readRecords(rest[0], *qiime)
	if err != nil {
		return err
	}
	if *qiime {
		if err := mapping.AdoptLinkerPrimer(records); err != nil {
			return err
		}
	}
	a.metrics.RecordsProcessed(ctx, "validate", len(records))
	res := mapping.Check(slices.Values(records))
	if res.OK() {
		a.green().Fprintf(a.stdout, "%s: %d records OK\n", rest[0], len(records))
		return nil
	}
	a.metrics.ValidationFailures(ctx, len(res.Violations))
	for _, v := range res.Violations {
		a.red().Fprintf(a.stdout, "record %d: %v\n", v.Index+1, v.Err)
	}
	fmt.Fprintf(a.stdout, "%s: %d violation(s) in %d records\n", rest[0], len(res.Violations), len(records))
	return errViolations
}

func runConvert(a *app, args []string) error {
	fs := a.flagSet()
	output := fs.StringP("output", "o", textio.Stdio, "output file")
	rest, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := a.setup(); err != nil {
		return err
	}
	records, err := readRecords(rest[0], true)
	if err != nil {
		return err
	}
	a.metrics.RecordsProcessed(context.Background(), "convert", len(records))
	a.logger.Debug("converted QIIME mapping", "input", rest[0], "records", len(records))
	return a.writeOutput(*output, func(w io.Writer) error { return mapping.WriteRegistry(w, records) })
}

func runCreateRun(a *app, args []string) error {
	fs := a.flagSet()
	var run domain.Run
	var date string
	fs.StringVar(&run.Comment, "comment", "", "free-text run description")
	fs.StringVar(&date, "date", "", "sequencing date (most common layouts accepted)")
	fs.StringVar(&run.Region, "region", "", "sequenced region, e.g. V4")
	fs.StringVar(&run.Platform, "platform", "", "sequencing platform")
	fs.StringVar(&run.MachineType, "machine-type", "", "instrument type")
	fs.StringVar(&run.MachineKit, "machine-kit", "", "reagent kit")
	fs.IntVar(&run.Lane, "lane", 0, "flow cell lane")
	fs.StringVar(&run.DataURI, "data-uri", "", "location of the raw sequence data")
	if _, err := a.parse(fs, args, 0); err != nil {
		return err
	}
	if date != "" {
		parsed, err := domain.ParseRunDate(date)
		if err != nil {
			return usageError{msg: err.Error()}
		}
		run.Date = parsed
	}
	ctx := context.Background()
	svc, cleanup, err := a.service(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()
	created, err := svc.CreateRun(ctx, run)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s\t%d\n", created.FormattedAccession(), created.Accession)
	return nil
}

func runListRuns(a *app, args []string) error {
	fs := a.flagSet()
	if _, err := a.parse(fs, args, 0); err != nil {
		return err
	}
	ctx := context.Background()
	svc, cleanup, err := a.service(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()
	runs, err := svc.Store().ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		d := r.Descriptor()
		fmt.Fprintln(a.stdout, strings.Join([]string{d.FormattedAccession, d.Date, d.Region, d.Platform, d.Comment}, "\t"))
	}
	return nil
}

func requireRun(run int) error {
	if run <= 0 {
		return usagef("--run is required")
	}
	return nil
}

func runImport(a *app, args []string) error {
	fs := a.flagSet()
	runAcc := fs.Int("run", 0, "run accession")
	var opts core.ImportOptions
	fs.BoolVar(&opts.QIIME, "qiime", false, "input is a QIIME mapping file")
	fs.BoolVar(&opts.Replace, "replace", false, "replace the run's existing samples")
	rest, err := a.parse(fs, args, 1)
	if err != nil {
		return err
	}
	if err := requireRun(*runAcc); err != nil {
		return err
	}
	ctx := context.Background()
	svc, cleanup, err := a.service(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()
	in, err := textio.Open(rest[0])
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	res, err := svc.ImportMapping(ctx, *runAcc, in, opts)
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Result.Violations {
			a.red().Fprintf(a.stdout, "record %d: %v\n", v.Index+1, v.Err)
		}
		return errViolations
	}
	if err != nil {
		return err
	}
	a.green().Fprintf(a.stdout, "registered %d samples and %d annotations\n", len(res.Samples), res.Annotations)
	a.printSourceRun(*runAcc, res.Run)
	return nil
}

// printSourceRun reports the run metadata carried by a QIIME file's comment
// lines and warns when it names a different run than the import target.
func (a *app) printSourceRun(target int, src mapping.RunDescriptor) {
	if src == (mapping.RunDescriptor{}) {
		return
	}
	fmt.Fprintf(a.stdout, "source run %s\tdate=%s\tregion=%s\tplatform=%s\tcomment=%s\n",
		src.FormattedAccession, src.Date, src.Region, src.Platform, src.Comment)
	want := domain.Run{Accession: target}.FormattedAccession()
	if src.FormattedAccession != "" && src.FormattedAccession != want {
		a.logger.Warn("mapping file names a different run", "file_run", src.FormattedAccession, "target_run", want)
	}
}

func runExport(a *app, args []string) error {
	fs := a.flagSet()
	runAcc := fs.Int("run", 0, "run accession")
	format := fs.String("format", "qiime", "output format (qiime|registry)")
	output := fs.StringP("output", "o", textio.Stdio, "output file")
	if _, err := a.parse(fs, args, 0); err != nil {
		return err
	}
	if err := requireRun(*runAcc); err != nil {
		return err
	}
	if *format != "qiime" && *format != "registry" {
		return usagef("unknown format %q", *format)
	}
	ctx := context.Background()
	svc, cleanup, err := a.service(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()
	if *format == "registry" {
		return a.writeOutput(*output, func(w io.Writer) error { return svc.ExportRegistry(ctx, *runAcc, w) })
	}
	text, err := svc.ExportQIIME(ctx, *runAcc)
	if err != nil {
		return err
	}
	return a.writeOutput(*output, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

func runPublish(a *app, args []string) error {
	fs := a.flagSet()
	runAcc := fs.Int("run", 0, "run accession")
	all := fs.Bool("all", false, "publish every registered run")
	concurrency := fs.Int("concurrency", core.DefaultPublishConcurrency, "uploads in flight with --all")
	if _, err := a.parse(fs, args, 0); err != nil {
		return err
	}
	if !*all {
		if err := requireRun(*runAcc); err != nil {
			return err
		}
	}
	ctx := context.Background()
	svc, cleanup, err := a.service(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()
	if *all {
		return a.publishAll(ctx, svc, *concurrency)
	}
	info, err := svc.PublishQIIME(ctx, *runAcc)
	if err != nil {
		return err
	}
	a.printPublished(info)
	return nil
}

func (a *app) printPublished(info blob.Info) {
	fmt.Fprintf(a.stdout, "%s\t%d bytes\t%s\n", info.Key, info.Size, info.ETag)
	if info.URL != "" {
		fmt.Fprintln(a.stdout, info.URL)
	}
}

func (a *app) publishAll(ctx context.Context, svc *core.Service, concurrency int) error {
	outcomes, err := svc.PublishAll(ctx, nil, concurrency)
	if err != nil {
		return err
	}
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			a.red().Fprintf(a.stdout, "%s: %v\n", domain.Run{Accession: o.RunAccession}.FormattedAccession(), o.Err)
			continue
		}
		a.printPublished(o.Info)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed to publish", failed, len(outcomes))
	}
	return nil
}
