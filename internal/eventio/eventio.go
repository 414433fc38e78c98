// Package eventio opens event listings on local disk or in the blob store.
// Paths of the form blob://key address the store; anything else is a file.
package eventio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"eventmix/internal/blob"
)

// Scheme prefixes blob store paths.
const Scheme = "blob://"

// ErrNoStore is returned for a blob path when no store was configured.
var ErrNoStore = errors.New("eventio: blob path without a configured store")

// BlobKey reports whether path addresses the blob store and returns its key.
func BlobKey(path string) (string, bool) {
	if !strings.HasPrefix(path, Scheme) {
		return "", false
	}
	return strings.TrimPrefix(path, Scheme), true
}

// IsBlob reports whether any of paths addresses the blob store.
func IsBlob(paths ...string) bool {
	for _, p := range paths {
		if _, ok := BlobKey(p); ok {
			return true
		}
	}
	return false
}

// Open returns a reader for path.
func Open(ctx context.Context, store blob.Store, path string) (io.ReadCloser, error) {
	key, ok := BlobKey(path)
	if !ok {
		return os.Open(path)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoStore, path)
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return rc, nil
}

// Option adjusts the attributes of a published blob.
type Option func(*blob.PutOptions)

// WithContentType sets the stored content type.
func WithContentType(ct string) Option {
	return func(o *blob.PutOptions) { o.ContentType = ct }
}

// WithMetadata adds one metadata entry.
func WithMetadata(key, value string) Option {
	return func(o *blob.PutOptions) {
		if o.Metadata == nil {
			o.Metadata = make(map[string]string)
		}
		o.Metadata[key] = value
	}
}

// Create returns a writer for path. Blob output is staged in a temporary
// file and published on Close; nothing is visible in the store before that.
func Create(ctx context.Context, store blob.Store, path string, opts ...Option) (io.WriteCloser, error) {
	key, ok := BlobKey(path)
	if !ok {
		return os.Create(path)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoStore, path)
	}
	if key == "" {
		return nil, fmt.Errorf("create %s: empty key", path)
	}
	tmp, err := os.CreateTemp("", "eventmix-*.stage")
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", path, err)
	}
	var put blob.PutOptions
	for _, o := range opts {
		o(&put)
	}
	return &stagedWriter{ctx: ctx, store: store, key: key, tmp: tmp, opts: put}, nil
}

type stagedWriter struct {
	ctx    context.Context
	store  blob.Store
	key    string
	tmp    *os.File
	opts   blob.PutOptions
	closed bool
}

func (w *stagedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, os.ErrClosed
	}
	return w.tmp.Write(p)
}

// Close uploads the staged bytes and removes the staging file.
func (w *stagedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.discard()
	if _, err := w.tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind stage: %w", err)
	}
	if _, err := w.store.Put(w.ctx, w.key, w.tmp, w.opts); err != nil {
		return fmt.Errorf("publish %s%s: %w", Scheme, w.key, err)
	}
	return nil
}

func (w *stagedWriter) discard() error {
	cerr := w.tmp.Close()
	if err := os.Remove(w.tmp.Name()); err != nil {
		return fmt.Errorf("remove stage: %w", err)
	}
	return cerr
}

// Abort ends a failed output. Staged blob output is dropped without being
// published; local files are closed and keep what was written.
func Abort(w io.WriteCloser) error {
	sw, ok := w.(*stagedWriter)
	if !ok {
		return w.Close()
	}
	if sw.closed {
		return nil
	}
	sw.closed = true
	return sw.discard()
}
