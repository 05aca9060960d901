package pipeline

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// multipartCutoff is the segment size above which uploads switch to S3
// multipart (also used as the part size).
const multipartCutoff int64 = 8 * 1024 * 1024

// Rotator rotates the active audit log and returns the path of the rotated
// segment, or "" when there was nothing to rotate. Implemented by
// audit.Logger.
type Rotator interface {
	Rotate() (string, error)
}

// Archiver moves rotated audit-log segments to S3 cold storage on a cron
// schedule, keeping the local audit file small while the full trail stays
// tailable from object storage.
type Archiver struct {
	rotator Rotator
	blob    domain.BlobWriter
	prefix  string
	logger  *slog.Logger
}

// NewArchiver creates an archiver that uploads rotated segments under the
// given key prefix.
func NewArchiver(rotator Rotator, blob domain.BlobWriter, prefix string, logger *slog.Logger) *Archiver {
	return &Archiver{
		rotator: rotator,
		blob:    blob,
		prefix:  prefix,
		logger:  logger.With(slog.String("component", "audit_archiver")),
	}
}

// Run executes a single archive pass: rotate the audit log, gzip the
// segment, upload it, and remove the local copies on success.
func (a *Archiver) Run(ctx context.Context) error {
	segment, err := a.rotator.Rotate()
	if err != nil {
		return fmt.Errorf("rotating audit log: %w", err)
	}
	if segment == "" {
		a.logger.Info("audit log empty, nothing to archive")
		return nil
	}

	packed, err := gzipSegment(segment)
	if err != nil {
		return fmt.Errorf("compressing segment %s: %w", segment, err)
	}
	defer os.Remove(packed)

	f, err := os.Open(packed)
	if err != nil {
		return fmt.Errorf("opening segment %s: %w", packed, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat segment %s: %w", packed, err)
	}

	key := path.Join(a.prefix, path.Base(packed))
	if info.Size() >= multipartCutoff {
		err = a.blob.PutMultipart(ctx, key, f, multipartCutoff)
	} else {
		err = a.blob.Put(ctx, key, f, "application/gzip")
	}
	if err != nil {
		return fmt.Errorf("uploading segment %s: %w", packed, err)
	}

	if err := os.Remove(segment); err != nil {
		a.logger.Warn("uploaded segment could not be removed locally",
			slog.String("segment", segment),
			slog.String("error", err.Error()),
		)
	}

	a.logger.Info("audit segment archived", slog.String("key", key))
	return nil
}

// gzipSegment compresses the segment to a sibling .gz file and returns its
// path. The source file is left in place until the upload succeeds.
func gzipSegment(segment string) (string, error) {
	src, err := os.Open(segment)
	if err != nil {
		return "", err
	}
	defer src.Close()

	packed := segment + ".gz"
	dst, err := os.Create(packed)
	if err != nil {
		return "", err
	}

	zw := gzip.NewWriter(dst)
	if _, err := io.Copy(zw, src); err != nil {
		dst.Close()
		os.Remove(packed)
		return "", err
	}
	if err := zw.Close(); err != nil {
		dst.Close()
		os.Remove(packed)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(packed)
		return "", err
	}
	return packed, nil
}

// RunCron runs the archiver on a cron schedule until the context is
// cancelled. It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week".
//
// Example: "0 3 * * *" runs at 3:00 AM every day.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	a.logger.Info("audit archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
		}

		waitDuration := time.Until(next)
		a.logger.Info("audit archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", waitDuration),
		)

		timer := time.NewTimer(waitDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("audit archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
