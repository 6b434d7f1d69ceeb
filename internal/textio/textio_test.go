package textio

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mapping = "#SampleID\tBarcodeSequence\nS1\tAAAA\n"

func TestDetect(t *testing.T) {
	cases := map[string]struct {
		head []byte
		want Format
	}{
		"plain": {[]byte(mapping), FormatPlain},
		"empty": {nil, FormatPlain},
		"gzip":  {[]byte{0x1f, 0x8b, 0x08, 0, 0, 0}, FormatGzip},
		"xz":    {[]byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}, FormatXZ},
		"bzip2": {[]byte("BZh91AY"), FormatBZip2},
		"zstd":  {[]byte{0x28, 0xb5, 0x2f, 0xfd, 0x04}, FormatZstd},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			br := bufio.NewReader(bytes.NewReader(tc.head))
			got, err := Detect(br)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			rest, _ := io.ReadAll(br)
			assert.Equal(t, len(tc.head), len(rest), "detect must not consume input")
		})
	}
}

func TestRoundTripThroughFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"mapping.tsv", "mapping.tsv.gz", "mapping.tsv.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			w, err := Create(path)
			require.NoError(t, err)
			_, err = io.WriteString(w, mapping)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			if FormatForPath(name) == FormatPlain {
				assert.Equal(t, mapping, string(raw))
			} else {
				assert.NotEqual(t, mapping, string(raw))
			}

			r, err := Open(path)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, mapping, string(got))
		})
	}
}

func TestNewWriterRejectsReadOnlyFormats(t *testing.T) {
	_, err := NewWriter(io.Discard, FormatXZ)
	assert.ErrorContains(t, err, "xz")
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatGzip, FormatForPath("a/b.TSV.GZ"))
	assert.Equal(t, FormatZstd, FormatForPath("b.zst"))
	assert.Equal(t, FormatPlain, FormatForPath("b.tsv"))
	assert.Equal(t, "plain", FormatPlain.String())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.tsv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCorruptGzip(t *testing.T) {
	_, err := NewReader(strings.NewReader("\x1f\x8b\x08garbage"))
	assert.Error(t, err)
}
