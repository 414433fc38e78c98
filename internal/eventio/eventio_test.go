package eventio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"eventmix/internal/blob"
	"eventmix/internal/blob/core"
)

func TestBlobKey(t *testing.T) {
	if k, ok := BlobKey("blob://runs/a.hepmc"); !ok || k != "runs/a.hepmc" {
		t.Fatalf("key %q %v", k, ok)
	}
	if _, ok := BlobKey("/tmp/a.hepmc"); ok {
		t.Fatalf("local path treated as blob")
	}
	if !IsBlob("a", "blob://b") || IsBlob("a", "b") {
		t.Fatalf("IsBlob mismatch")
	}
}

func TestLocalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.hepmc")
	w, err := Create(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := io.WriteString(w, "listing"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	r, err := Open(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	b, _ := io.ReadAll(r)
	if string(b) != "listing" {
		t.Fatalf("read %q", b)
	}
}

func TestBlobPublishedOnClose(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	w, err := Create(ctx, store, "blob://runs/out.hepmc",
		WithContentType(core.ContentTypeAsciiv3), WithMetadata(core.MetaFormat, "hepmc3"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := io.WriteString(w, "E 1 0 0\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Head(ctx, "runs/out.hepmc"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("visible before close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("write after close: %v", err)
	}
	info, err := store.Head(ctx, "runs/out.hepmc")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if info.ContentType != core.ContentTypeAsciiv3 || info.Metadata[core.MetaFormat] != "hepmc3" || info.Size != 8 {
		t.Fatalf("info %+v", info)
	}
	r, err := Open(ctx, store, "blob://runs/out.hepmc")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	b, _ := io.ReadAll(r)
	if string(b) != "E 1 0 0\n" {
		t.Fatalf("read %q", b)
	}
}

func TestAbortDropsStagedBlob(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	w, err := Create(ctx, store, "blob://runs/partial.hepmc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := io.WriteString(w, "E 0 0 0\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	stage := w.(*stagedWriter).tmp.Name()
	if err := Abort(w); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, err := store.Head(ctx, "runs/partial.hepmc"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("aborted output published: %v", err)
	}
	if _, err := os.Stat(stage); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("staging file left behind: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close after abort: %v", err)
	}
	if _, err := store.Head(ctx, "runs/partial.hepmc"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("close after abort published: %v", err)
	}
	if _, err := w.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("write after abort: %v", err)
	}
}

func TestAbortClosesLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.hepmc")
	w, err := Create(context.Background(), nil, path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := io.WriteString(w, "partial"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Abort(w); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if b, err := os.ReadFile(path); err != nil || string(b) != "partial" {
		t.Fatalf("local output %q %v", b, err)
	}
}

func TestBlobWithoutStore(t *testing.T) {
	if _, err := Open(context.Background(), nil, "blob://x"); !errors.Is(err, ErrNoStore) {
		t.Fatalf("open: %v", err)
	}
	if _, err := Create(context.Background(), nil, "blob://x"); !errors.Is(err, ErrNoStore) {
		t.Fatalf("create: %v", err)
	}
}

func TestBlobMissingAndDuplicate(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	if _, err := Open(ctx, store, "blob://missing"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("open missing: %v", err)
	}
	for i := 0; i < 2; i++ {
		w, err := Create(ctx, store, "blob://dup")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		err = w.Close()
		if i == 1 && !errors.Is(err, blob.ErrExists) {
			t.Fatalf("duplicate publish: %v", err)
		}
	}
}
