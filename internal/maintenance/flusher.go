// Package maintenance implements the periodic spool flush action fired
// by the scheduler.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Uploader ships flushed spool contents to remote storage.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// Config holds configuration for creating a new Flusher.
type Config struct {
	// SpoolPath is the local file that workers append to and the flusher
	// drains.
	SpoolPath string

	Uploader Uploader
	Logger   *slog.Logger

	// OnFlush is called after every non-empty flush attempt with the spool
	// size, the attempt duration, and the outcome.
	OnFlush func(bytes int, duration time.Duration, err error)
}

// Flusher drains a local spool file to remote storage. The order is
// strict: read, upload, then truncate. Truncation happens only after a
// successful upload, so a failed send leaves the spool intact and the
// next interval retries the same data.
type Flusher struct {
	spoolPath string
	uploader  Uploader
	logger    *slog.Logger
	onFlush   func(bytes int, duration time.Duration, err error)
}

// New creates a new Flusher with the given configuration.
func New(cfg Config) *Flusher {
	return &Flusher{
		spoolPath: cfg.SpoolPath,
		uploader:  cfg.Uploader,
		logger:    cfg.Logger,
		onFlush:   cfg.OnFlush,
	}
}

// FlushAndReset reads the spool, uploads its contents, and truncates it.
// An empty or missing spool is a no-op, not an error.
func (f *Flusher) FlushAndReset(ctx context.Context) error {
	data, err := os.ReadFile(f.spoolPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.logger.Debug("spool_missing", "path", f.spoolPath)
			return nil
		}
		return fmt.Errorf("read spool %s: %w", f.spoolPath, err)
	}

	if len(data) == 0 {
		f.logger.Debug("spool_empty", "path", f.spoolPath)
		return nil
	}

	start := time.Now()
	if err := f.uploader.Upload(ctx, f.spoolPath, data); err != nil {
		if f.onFlush != nil {
			f.onFlush(len(data), time.Since(start), err)
		}
		// Spool kept intact for retry on the next interval.
		return fmt.Errorf("upload spool %s: %w", f.spoolPath, err)
	}

	if f.onFlush != nil {
		f.onFlush(len(data), time.Since(start), nil)
	}

	if err := os.Truncate(f.spoolPath, 0); err != nil {
		return fmt.Errorf("truncate spool %s: %w", f.spoolPath, err)
	}

	f.logger.Info("spool_flushed",
		"path", f.spoolPath,
		"bytes", len(data),
	)
	return nil
}

// SpoolPath returns the path of the spool file being drained.
func (f *Flusher) SpoolPath() string {
	return f.spoolPath
}
