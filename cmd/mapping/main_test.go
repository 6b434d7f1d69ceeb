package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampleregistry/internal/textio"
)

const registryInput = "sample_name\tbarcode_sequence\tprimer_sequence\thost\tsite\n" +
	"S1\tAGCT\tGTGC\thuman\tgut\n" +
	"S2\tTTTT\tGTGC\tmouse\tNA\n"

const qiimeInput = "#SampleID\tBarcodeSequence\tLinkerPrimerSequence\thost\tDescription\n" +
	"#pilot\n" +
	"S1\tAGCT\tGTGC\thuman\tjunk\n"

// isolate points every storage and blob setting at a fresh temp directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SAMPLEREGISTRY_CONFIG", "")
	t.Setenv("SAMPLEREGISTRY_STORAGE_DRIVER", "sqlite")
	t.Setenv("SAMPLEREGISTRY_SQLITE_PATH", filepath.Join(dir, "registry.db"))
	t.Setenv("SAMPLEREGISTRY_BLOB_DRIVER", "fs")
	t.Setenv("SAMPLEREGISTRY_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("SAMPLEREGISTRY_LOG_LEVEL", "info")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := cli(append(args, "--no-color"), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, cli(nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage: mapping")
	assert.Contains(t, stderr.String(), "publish")

	stderr.Reset()
	assert.Equal(t, 0, cli([]string{"help"}, &stdout, &stderr))

	stderr.Reset()
	assert.Equal(t, 2, cli([]string{"frobnicate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), `unknown command "frobnicate"`)
}

func TestMainUsesExitFunc(t *testing.T) {
	oldArgs, oldExit := os.Args, exitFunc
	defer func() { os.Args, exitFunc = oldArgs, oldExit }()
	var got int
	exitFunc = func(code int) { got = code }
	os.Args = []string{"mapping"}
	main()
	assert.Equal(t, 2, got)
}

func TestValidate(t *testing.T) {
	dir := isolate(t)
	good := writeFile(t, dir, "good.tsv", registryInput)
	code, out, _ := run("validate", good)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "2 records OK")

	bad := writeFile(t, dir, "bad.tsv", "sample_name\tbarcode_sequence\nS1\tAGCT\nS1\tAGXT\n")
	code, out, _ = run("validate", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "record 2:")
	assert.Contains(t, out, "2 violation(s) in 2 records")

	code, _, stderr := run("validate", filepath.Join(dir, "missing.tsv"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "validate:")

	code, _, _ = run("validate")
	assert.Equal(t, 2, code)
}

func TestValidateCompressedQIIME(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "mapping.txt.gz")
	w, err := textio.Create(path)
	require.NoError(t, err)
	_, err = w.Write([]byte(qiimeInput))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	code, out, _ := run("validate", "--qiime", path)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "1 records OK")
}

func TestConvert(t *testing.T) {
	dir := isolate(t)
	in := writeFile(t, dir, "qiime.txt", qiimeInput)
	out := filepath.Join(dir, "registry.tsv")
	code, _, stderr := run("convert", in, "-o", out)
	require.Equal(t, 0, code, stderr)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "sample_name\tbarcode_sequence\tLinkerPrimerSequence\thost\n"+
		"S1\tAGCT\tGTGC\thuman\n", string(got))

	code, stdout, stderr := run("convert", in)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, string(got), stdout, "default output goes to the command's stdout")
}

func TestRegistryWorkflow(t *testing.T) {
	dir := isolate(t)
	metricsPath := filepath.Join(dir, "metrics.prom")

	code, out, stderr := run("create-run", "--comment", "pilot", "--date", "March 5, 2024",
		"--region", "V4", "--platform", "Illumina MiSeq")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "CMR000001\t1\n", out)
	assert.Contains(t, stderr, "run created")

	input := writeFile(t, dir, "samples.tsv", registryInput)
	code, out, stderr = run("import", "--run", "1", input, "--metrics-file", metricsPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "registered 2 samples and 3 annotations")

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "sampleregistry_operations_total")

	code, _, _ = run("import", "--run", "1", input)
	assert.Equal(t, 1, code, "re-import without --replace collides")
	code, _, stderr = run("import", "--run", "1", "--replace", input)
	require.Equal(t, 0, code, stderr)

	registryOut := filepath.Join(dir, "export.tsv")
	code, _, stderr = run("export", "--run", "1", "--format", "registry", "-o", registryOut)
	require.Equal(t, 0, code, stderr)
	got, err := os.ReadFile(registryOut)
	require.NoError(t, err)
	assert.Equal(t, "sample_name\tbarcode_sequence\thost\tprimer_sequence\tsite\n"+
		"S1\tAGCT\thuman\tGTGC\tgut\n"+
		"S2\tTTTT\tmouse\tGTGC\tNA\n", string(got))

	code, out, _ = run("export", "--run", "1")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "#SampleID\tBarcodeSequence\tLinkerPrimerSequence\thost\tsite\tDescription\n"))
	assert.Contains(t, out, "#Sequencing date: 2024-03-05\n")
	assert.Contains(t, out, "S1\tAGCT\tGTGC\thuman\tgut\tCMS000003\n")

	code, out, stderr = run("publish", "--run", "1")
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(out, "runs/CMR000001/qiime_mapping.tsv\t"))
	published, err := os.ReadFile(filepath.Join(dir, "blobs", "runs", "CMR000001", "qiime_mapping.tsv"))
	require.NoError(t, err)
	assert.Contains(t, string(published), "#Bushman lab run accession: CMR000001")

	code, out, stderr = run("publish", "--all", "--concurrency", "2")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "runs/CMR000001/qiime_mapping.tsv\t")

	code, out, _ = run("runs")
	require.Equal(t, 0, code)
	assert.Equal(t, "CMR000001\t2024-03-05\tV4\tIllumina MiSeq\tpilot\n", out)
}

func TestImportReportsViolations(t *testing.T) {
	dir := isolate(t)
	code, _, stderr := run("create-run", "--comment", "x")
	require.Equal(t, 0, code, stderr)

	bad := writeFile(t, dir, "bad.tsv", "sample_name\tbarcode_sequence\nS1\tAG CT\n")
	code, out, _ := run("import", "--run", "1", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "record 1:")

	code, _, stderr = run("export", "--run", "9")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "run 9 not found")
}

func TestUsageErrors(t *testing.T) {
	dir := isolate(t)
	input := writeFile(t, dir, "samples.tsv", registryInput)
	cases := [][]string{
		{"import", input},
		{"export", "--run", "1", "--format", "yaml"},
		{"create-run", "--date", "not a date"},
		{"publish"},
		{"validate", "--bogus", input},
		{"runs", "--log-level", "loud"},
	}
	for _, args := range cases {
		code, _, _ := run(args...)
		assert.Equal(t, 2, code, "%v", args)
	}
}

func TestImportQIIMEReportsSourceRun(t *testing.T) {
	dir := isolate(t)
	for range 2 {
		code, _, stderr := run("create-run", "--comment", "pilot", "--date", "2024-03-05", "--region", "V4", "--platform", "MiSeq")
		require.Equal(t, 0, code, stderr)
	}
	input := writeFile(t, dir, "samples.tsv", registryInput)
	code, _, stderr := run("import", "--run", "1", input)
	require.Equal(t, 0, code, stderr)

	exported := filepath.Join(dir, "run1.txt")
	code, _, stderr = run("export", "--run", "1", "-o", exported)
	require.Equal(t, 0, code, stderr)

	code, out, stderr := run("import", "--run", "2", "--qiime", exported)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "registered 2 samples and 3 annotations")
	assert.Contains(t, out, "source run CMR000001\tdate=2024-03-05\tregion=V4\tplatform=MiSeq")
	assert.Contains(t, stderr, "mapping file names a different run")
}

func TestValidateQIIMEChecksLinkerPrimer(t *testing.T) {
	dir := isolate(t)
	bad := writeFile(t, dir, "bad.txt", "#SampleID\tBarcodeSequence\tLinkerPrimerSequence\tDescription\nS1\tAGCT\tZZ!!\tx\n")
	code, out, _ := run("validate", "--qiime", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "record 1:")
}
