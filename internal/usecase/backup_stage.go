package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/dbpull/internal/domain"
)

const backupTimestamp = "20060102_150405"

// backup dumps the local database into a new file under the backup
// directory and returns its path. A failed backup leaves no file behind.
func (p *Puller) backup(ctx context.Context, job *transferJob) (string, error) {
	ep := job.endpoints.Local
	estimate := p.estimators.Local(ep).EstimateSizeBytes(ctx, ep.Database)

	if err := os.MkdirAll(p.cfg.BackupDir, 0755); err != nil {
		return "", stageError(domain.StageBackup, domain.KindBackupFailed, fmt.Errorf("create backup directory: %w", err))
	}

	f, err := createBackupFile(p.cfg.BackupDir, ep.Database, p.now())
	if err != nil {
		return "", stageError(domain.StageBackup, domain.KindBackupFailed, err)
	}
	path := f.Name()

	job.progress.Report(domain.StageBackup, 0, fmt.Sprintf("Backing up local database %s (~%s)", ep.Database, sizeLabel(estimate)))
	p.logger.Infof("[%s] Backing up local database to %s", ep.Database, path)

	cmd := p.mysql.Backup(ep, f)
	cmd.Timeout = job.timeout

	h, err := p.runner.Start(ctx, cmd)
	_ = f.Close()
	if err != nil {
		_ = os.Remove(path)
		return "", stageError(domain.StageBackup, domain.KindBackupFailed, err)
	}

	watchGrowth(h, path, estimate, p.cfg.PollInterval, func(size int64, pct int) {
		job.progress.Advance(domain.StageBackup, pct, fmt.Sprintf("Backing up local database... %s", humanize.Bytes(uint64(size))))
	})

	if _, err := h.Wait(nil); err != nil {
		_ = os.Remove(path)
		return "", stageError(domain.StageBackup, domain.KindBackupFailed, err)
	}

	job.progress.Report(domain.StageBackup, 100, "Local backup complete")
	if info, err := os.Stat(path); err == nil {
		p.logger.Infof("[%s] Local backup complete, size: %s", ep.Database, humanize.Bytes(uint64(info.Size())))
	}

	return path, nil
}

// createBackupFile creates {database}_{timestamp}.sql, adding _N when the
// name is already taken.
func createBackupFile(dir, database string, now time.Time) (*os.File, error) {
	base := fmt.Sprintf("%s_%s", database, now.Format(backupTimestamp))

	for i := 0; i < 100; i++ {
		name := base + ".sql"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.sql", base, i)
		}

		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create backup file: %w", err)
		}
	}

	return nil, fmt.Errorf("create backup file: too many backups named %s", base)
}

func sizeLabel(estimate int64) string {
	if estimate <= 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(estimate))
}
