package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"sampleregistry/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	md := map[string]string{"run": "CMR000001"}
	info, err := s.Put(ctx, "runs/CMR000001/qiime_mapping.tsv", strings.NewReader("abc"), core.PutOptions{ContentType: core.ContentTypeTSV, Metadata: md})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	md["run"] = "mutated"
	if info.Size != 3 || info.ETag == "" || info.Metadata["run"] != "CMR000001" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "runs/CMR000001/qiime_mapping.tsv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	replaced, err := s.Put(ctx, "runs/CMR000001/qiime_mapping.tsv", strings.NewReader("abcd"), core.PutOptions{Overwrite: true})
	if err != nil || replaced.Size != 4 || replaced.ETag == info.ETag {
		t.Fatalf("overwrite: %+v %v", replaced, err)
	}

	_, rc, err := s.Get(ctx, "runs/CMR000001/qiime_mapping.tsv")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "abcd" {
		t.Fatalf("unexpected body %q", b)
	}
	_, _ = s.Put(ctx, "runs/CMR000002/qiime_mapping.tsv", strings.NewReader(""), core.PutOptions{})
	_, _ = s.Put(ctx, "other", strings.NewReader(""), core.PutOptions{})
	list, _ := s.List(ctx, "runs/")
	if len(list) != 2 || list[0].Key != "runs/CMR000001/qiime_mapping.tsv" {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := s.Delete(ctx, "other"); !ok {
		t.Fatal("expected delete to report existing blob")
	}
	if ok, _ := s.Delete(ctx, "other"); ok {
		t.Fatal("expected second delete to report missing blob")
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Head: %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Put(ctx, "", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatal("expected empty key error")
	}
	if _, err := s.PresignURL(ctx, "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Put(cancelled, "k", strings.NewReader(""), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
