package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"eventmix/internal/blob/core"
)

func TestGetReturnsPrivateCopy(t *testing.T) {
	s := New()
	md := map[string]string{"tool": "shower"}
	if _, err := s.Put(context.Background(), "k", strings.NewReader("abc"), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["tool"] = "mutated"
	info, rc, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	if info.Metadata["tool"] != "shower" {
		t.Fatalf("metadata aliased: %v", info.Metadata)
	}
	info.Metadata["tool"] = "again"
	again, _ := s.Head(context.Background(), "k")
	if again.Metadata["tool"] != "shower" {
		t.Fatalf("head metadata aliased: %v", again.Metadata)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "abc" {
		t.Fatalf("body %q", b)
	}
}

func TestPresignUnsupported(t *testing.T) {
	if _, err := New().PresignURL(context.Background(), "k", core.SignedURLOptions{}); err != core.ErrUnsupported {
		t.Fatalf("got %v", err)
	}
}
