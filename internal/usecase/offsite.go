package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/semmidev/dbpull/internal/domain"
)

type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      3,
	InitialInterval: time.Second,
	MaxElapsedTime:  5 * time.Minute,
}

// Offsite copies finished local backups to the configured upload targets.
type Offsite struct {
	uploadTargets []UploadTarget
	compressor    domain.Compressor
	logger        domain.Logger
	compress      bool
	retry         RetryPolicy
}

func NewOffsite(
	uploadTargets []UploadTarget,
	compressor domain.Compressor,
	logger domain.Logger,
	compress bool,
	retry RetryPolicy,
) *Offsite {
	return &Offsite{
		uploadTargets: uploadTargets,
		compressor:    compressor,
		logger:        logger,
		compress:      compress && compressor != nil,
		retry:         retry,
	}
}

func (uc *Offsite) Targets() []UploadTarget {
	return uc.uploadTargets
}

// Ship uploads backupPath to every target. The backup itself is left in
// place; only a compressed temporary copy is removed.
func (uc *Offsite) Ship(ctx context.Context, backupPath string) error {
	if len(uc.uploadTargets) == 0 {
		return nil
	}

	start := time.Now()
	filename := filepath.Base(backupPath)
	finalPath, finalFilename := backupPath, filename

	if uc.compress {
		info, err := os.Stat(backupPath)
		if err != nil {
			return fmt.Errorf("stat backup file: %w", err)
		}

		finalPath, finalFilename, err = uc.compressBackup(backupPath, filename, info.Size())
		if err != nil {
			return err
		}
		defer os.Remove(finalPath)
	}

	if err := uc.uploadToTargets(ctx, finalPath, finalFilename); err != nil {
		return err
	}

	uc.logger.Infof("Offsite copies of %s completed in %s", finalFilename, time.Since(start).Round(time.Second))
	return nil
}

func (uc *Offsite) compressBackup(sourcePath, filename string, originalSize int64) (string, string, error) {
	compressedFilename := filename + uc.compressor.Extension()
	compressedPath := filepath.Join(os.TempDir(), compressedFilename)

	uc.logger.Infof("Compressing %s...", filename)
	if err := uc.compressor.Compress(sourcePath, compressedPath); err != nil {
		_ = os.Remove(compressedPath)
		return "", "", fmt.Errorf("compression: %w", err)
	}

	if info, err := os.Stat(compressedPath); err == nil && originalSize > 0 {
		uc.logger.Infof("Compression complete, size: %s (%.1f%% of original)",
			humanize.Bytes(uint64(info.Size())),
			float64(info.Size())/float64(originalSize)*100)
	}

	return compressedPath, compressedFilename, nil
}

// uploadToTargets uploads to every target concurrently. One failing target
// does not stop the others; the first error is returned.
func (uc *Offsite) uploadToTargets(ctx context.Context, filePath, filename string) error {
	var g errgroup.Group

	for _, target := range uc.uploadTargets {
		target := target
		g.Go(func() error {
			uc.logger.Infof("Uploading %s to %s...", filename, target.Name)
			if err := uc.upload(ctx, target, filePath, filename); err != nil {
				uc.logger.Errorf("Failed to upload %s to %s: %v", filename, target.Name, err)
				return fmt.Errorf("upload to %s: %w", target.Name, err)
			}
			uc.logger.Infof("Successfully uploaded %s to %s", filename, target.Name)
			return nil
		})
	}

	return g.Wait()
}

func (uc *Offsite) upload(ctx context.Context, target UploadTarget, filePath, filename string) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = uc.retry.InitialInterval
	expBackoff.MaxElapsedTime = uc.retry.MaxElapsedTime
	expBackoff.Reset()

	var b backoff.BackOff = expBackoff
	if uc.retry.MaxRetries > 0 {
		b = backoff.WithMaxRetries(expBackoff, uc.retry.MaxRetries)
	}
	b = backoff.WithContext(b, ctx)

	return backoff.RetryNotify(func() error {
		return target.Storage.Upload(ctx, filePath, filename)
	}, b, func(err error, wait time.Duration) {
		uc.logger.Warnf("Upload to %s failed, retrying in %s: %v", target.Name, wait.Round(time.Millisecond), err)
	})
}
