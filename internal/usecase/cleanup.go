package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/semmidev/dbpull/internal/domain"
)

// Cleanup removes offsite copies of backups older than the retention window.
type Cleanup struct {
	uploadTargets []UploadTarget
	logger        domain.Logger
	retentionDays int
	database      string
	now           func() time.Time
}

func NewCleanup(
	uploadTargets []UploadTarget,
	logger domain.Logger,
	retentionDays int,
	database string,
) *Cleanup {
	return &Cleanup{
		uploadTargets: uploadTargets,
		logger:        logger,
		retentionDays: retentionDays,
		database:      database,
		now:           time.Now,
	}
}

func (uc *Cleanup) Execute(ctx context.Context) error {
	if uc.retentionDays <= 0 {
		uc.logger.Debugf("Cleanup disabled, retention is 0 days")
		return nil
	}

	uc.logger.Infof("Starting cleanup, retention: %d days", uc.retentionDays)

	cutoff := uc.now().AddDate(0, 0, -uc.retentionDays)

	if len(uc.uploadTargets) > 0 {
		uc.cleanupTargets(ctx, cutoff)
	}

	uc.logger.Infof("Cleanup completed")
	return nil
}

func (uc *Cleanup) cleanupTargets(ctx context.Context, cutoff time.Time) {
	var wg sync.WaitGroup

	for _, target := range uc.uploadTargets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			if err := uc.cleanupTarget(ctx, t, cutoff); err != nil {
				uc.logger.Errorf("Cleanup failed for %s: %v", t.Name, err)
			}
		}(target)
	}

	wg.Wait()
}

func (uc *Cleanup) cleanupTarget(ctx context.Context, target UploadTarget, cutoff time.Time) error {
	files, err := target.Storage.GetOldFiles(ctx, cutoff)
	if err != nil {
		files, err = uc.fallbackListFiles(ctx, target, cutoff)
		if err != nil {
			return err
		}
	}

	deleted := 0
	for _, filename := range files {
		if !uc.owns(filename) {
			continue
		}

		uc.logger.Infof("Deleting old backup from %s: %s", target.Name, filename)

		if err := target.Storage.Delete(ctx, filename); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", filename, target.Name, err)
		} else {
			deleted++
		}
	}

	uc.logger.Infof("Deleted %d old backup(s) from %s", deleted, target.Name)
	return nil
}

func (uc *Cleanup) fallbackListFiles(ctx context.Context, target UploadTarget, cutoff time.Time) ([]string, error) {
	files, err := target.Storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	oldFiles := make([]string, 0)
	for _, filename := range files {
		timestamp, err := extractTimestamp(filename)
		if err != nil {
			uc.logger.Warnf("Could not parse timestamp from %s: %v", filename, err)
			continue
		}

		if timestamp.Before(cutoff) {
			oldFiles = append(oldFiles, filename)
		}
	}

	return oldFiles, nil
}

// owns reports whether filename is a backup of this database, so a shared
// bucket or folder never loses someone else's files.
func (uc *Cleanup) owns(filename string) bool {
	rest, ok := strings.CutPrefix(filename, uc.database+"_")
	if !ok {
		return false
	}
	loc := timestampPattern.FindStringIndex(rest)
	return loc != nil && loc[0] == 0
}
