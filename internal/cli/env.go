// Package cli wires the shared runtime of the command-line tools: settings,
// logging, event-file storage, the run ledger and metrics.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"eventmix/internal/blob"
	"eventmix/internal/config"
	"eventmix/internal/eventio"
	"eventmix/internal/ledger"
	"eventmix/internal/logging"
	"eventmix/internal/metrics"
)

// Options describe one command invocation.
type Options struct {
	Tool string
	// Paths are every input and output path; a blob store is opened only
	// when one of them uses the blob:// scheme.
	Paths []string
	// MetricsFile overrides EVENTMIX_METRICS_FILE when non-empty.
	MetricsFile string
}

// Env is the runtime shared by a command's components.
type Env struct {
	Settings config.Settings
	Logger   *slog.Logger
	Blob     blob.Store
	Ledger   ledger.Store
	Metrics  *metrics.Recorder

	tool        string
	metricsFile string
}

// Setup loads settings and opens the configured backends. Log records go
// to stderr.
func Setup(ctx context.Context, opts Options, stderr io.Writer) (*Env, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{Level: settings.LogLevel, Format: settings.LogFormat, Component: opts.Tool}, stderr)
	if err != nil {
		return nil, err
	}
	env := &Env{
		Settings:    settings,
		Logger:      logger,
		Metrics:     metrics.New(opts.Tool),
		tool:        opts.Tool,
		metricsFile: settings.MetricsFile,
	}
	if opts.MetricsFile != "" {
		env.metricsFile = opts.MetricsFile
	}
	if eventio.IsBlob(opts.Paths...) {
		if env.Blob, err = blob.Open(ctx); err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		logger.Debug("blob store opened", "driver", string(env.Blob.Driver()))
	}
	if env.Ledger, err = ledger.Open(ctx); err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return env, nil
}

// OpenInput opens an event listing for reading.
func (e *Env) OpenInput(ctx context.Context, path string) (io.ReadCloser, error) {
	return eventio.Open(ctx, e.Blob, path)
}

// CreateOutput opens an event listing for writing. Blob outputs carry the
// content type, format name, tool and run id as metadata.
func (e *Env) CreateOutput(ctx context.Context, path, contentType, format, runID string) (io.WriteCloser, error) {
	return eventio.Create(ctx, e.Blob, path,
		eventio.WithContentType(contentType),
		eventio.WithMetadata(blob.MetaFormat, format),
		eventio.WithMetadata(blob.MetaTool, e.tool),
		eventio.WithMetadata(blob.MetaRunID, runID),
	)
}

// StartRun records the start of a run in the ledger, if one is configured.
func (e *Env) StartRun(ctx context.Context, mode string, inputs []string, output string) (*ledger.Run, error) {
	return ledger.Start(ctx, e.Ledger, e.tool, mode, inputs, output)
}

// Close writes the metrics textfile and closes the ledger.
func (e *Env) Close() error {
	var errs []error
	if err := e.Metrics.WriteTextfile(e.metricsFile); err != nil {
		errs = append(errs, err)
	}
	if e.Ledger != nil {
		if err := e.Ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}
	return errors.Join(errs...)
}

// MetricsFile returns the resolved textfile path, empty when disabled.
func (e *Env) MetricsFile() string { return e.metricsFile }
