// Package textio opens mapping files for the command line tools. Inputs are
// decompressed transparently by sniffing magic bytes; outputs are compressed
// according to their file extension. The name "-" selects stdin or stdout.
package textio

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/xi2/xz"
)

// Stdio names standard input or output.
const Stdio = "-"

// Format identifies a stream encoding.
type Format byte

const (
	FormatPlain Format = iota
	FormatGzip
	FormatXZ
	FormatBZip2
	FormatZstd
)

func (f Format) String() string {
	switch f {
	case FormatGzip:
		return "gzip"
	case FormatXZ:
		return "xz"
	case FormatBZip2:
		return "bzip2"
	case FormatZstd:
		return "zstd"
	default:
		return "plain"
	}
}

var signatures = []struct {
	format Format
	magic  []byte
}{
	{FormatGzip, []byte{0x1f, 0x8b, 0x08}},
	{FormatXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FormatBZip2, []byte{0x42, 0x5a, 0x68}},
	{FormatZstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
}

// Detect peeks at the head of br without consuming it.
func Detect(br *bufio.Reader) (Format, error) {
	head, err := br.Peek(6)
	if err != nil && !errors.Is(err, io.EOF) {
		return FormatPlain, err
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(head, sig.magic) {
			return sig.format, nil
		}
	}
	return FormatPlain, nil
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewReader wraps r with the decompressor matching its magic bytes.
func NewReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	format, err := Detect(br)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatGzip:
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return &readCloser{Reader: zr, closers: []func() error{zr.Close}}, nil
	case FormatXZ:
		zr, err := xz.NewReader(br, 0)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return &readCloser{Reader: zr}, nil
	case FormatBZip2:
		return &readCloser{Reader: bzip2.NewReader(br)}, nil
	case FormatZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return &readCloser{Reader: zr, closers: []func() error{func() error { zr.Close(); return nil }}}, nil
	}
	return &readCloser{Reader: br}, nil
}

// Open opens name (or stdin for "-") and decompresses it if needed.
func Open(name string) (io.ReadCloser, error) {
	if name == Stdio || name == "" {
		return NewReader(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	rc, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	inner := rc.(*readCloser)
	inner.closers = append(inner.closers, f.Close)
	return inner, nil
}

// FormatForPath picks the output encoding from the file extension.
func FormatForPath(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return FormatGzip
	case ".zst", ".zstd":
		return FormatZstd
	default:
		return FormatPlain
	}
}

type writeCloser struct {
	io.Writer
	closers []func() error
}

// Close flushes the encoder before the underlying file.
func (w *writeCloser) Close() error {
	var errs []error
	for _, c := range w.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewWriter wraps w with an encoder for format. Only plain, gzip and zstd
// outputs are supported.
func NewWriter(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case FormatPlain:
		return &writeCloser{Writer: w}, nil
	case FormatGzip:
		zw, err := pgzip.NewWriterLevel(w, pgzip.BestSpeed)
		if err != nil {
			return nil, err
		}
		return &writeCloser{Writer: zw, closers: []func() error{zw.Close}}, nil
	case FormatZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		return &writeCloser{Writer: zw, closers: []func() error{zw.Close}}, nil
	}
	return nil, fmt.Errorf("unsupported output format %s", format)
}

// Create opens name (or stdout for "-") for writing, compressed according to
// its extension. Closing the result never closes stdout.
func Create(name string) (io.WriteCloser, error) {
	if name == Stdio || name == "" {
		return NewWriter(os.Stdout, FormatPlain)
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	wc, err := NewWriter(f, FormatForPath(name))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	inner := wc.(*writeCloser)
	inner.closers = append(inner.closers, f.Close)
	return inner, nil
}
