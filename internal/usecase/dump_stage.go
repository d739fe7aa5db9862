package usecase

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/semmidev/dbpull/internal/domain"
)

// dump streams the remote database over ssh into path. path belongs to the
// orchestrator; dump never removes it.
func (p *Puller) dump(ctx context.Context, job *transferJob, path string) error {
	remote := job.endpoints.Remote

	estimate := p.estimators.Remote(job.shell, remote).EstimateSizeBytes(ctx, remote.Database)
	job.progress.Report(domain.StageDump, 0, fmt.Sprintf("Dumping remote database %s (~%s)", remote.Database, sizeLabel(estimate)))
	p.logger.Infof("[%s] Dumping remote database from %s", remote.Database, job.endpoints.Shell.Host)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return stageError(domain.StageDump, domain.KindDumpFailed, fmt.Errorf("open dump file: %w", err))
	}

	cmd := p.mysql.RemoteDump(job.shell, remote, f)
	cmd.Timeout = job.timeout

	h, err := p.runner.Start(ctx, cmd)
	_ = f.Close()
	if err != nil {
		return stageError(domain.StageDump, domain.KindDumpFailed, err)
	}

	watchGrowth(h, path, estimate, p.cfg.PollInterval, func(size int64, pct int) {
		job.progress.Advance(domain.StageDump, pct, fmt.Sprintf("Dumping remote database... %s", humanize.Bytes(uint64(size))))
	})

	if _, err := h.Wait(nil); err != nil {
		return stageError(domain.StageDump, domain.KindDumpFailed, err)
	}

	job.progress.Report(domain.StageDump, 100, "Remote dump complete")
	if info, err := os.Stat(path); err == nil {
		p.logger.Infof("[%s] Remote dump complete, size: %s", remote.Database, humanize.Bytes(uint64(info.Size())))
	}

	return nil
}
