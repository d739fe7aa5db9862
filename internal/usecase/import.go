package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/config"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

type ImportMode int

const (
	ImportChunked ImportMode = iota
	ImportMetered
)

func (m ImportMode) String() string {
	if m == ImportMetered {
		return config.ImportModeMetered
	}
	return config.ImportModeChunked
}

const probeTimeout = 5 * time.Second

// DetectImportMode picks the metered import when pv runs. forced may pin a
// mode; anything other than metered or chunked means auto.
func DetectImportMode(ctx context.Context, runner procrun.Runner, mysql *database.MySQL, forced string) ImportMode {
	switch forced {
	case config.ImportModeMetered:
		return ImportMetered
	case config.ImportModeChunked:
		return ImportChunked
	}

	probe := mysql.MeterProbe()
	probe.Timeout = probeTimeout
	if _, err := runner.Run(ctx, probe); err != nil {
		return ImportChunked
	}
	return ImportMetered
}

// ImportStrategy loads a dump file into a database. It never removes artifact.
type ImportStrategy interface {
	Import(ctx context.Context, artifact string, endpoint domain.DBEndpoint) error
}

type importDeps struct {
	runner   procrun.Runner
	mysql    *database.MySQL
	progress *Progress
	timeout  time.Duration
}

func newImportStrategy(mode ImportMode, deps importDeps) ImportStrategy {
	if mode == ImportMetered {
		return &meteredImport{deps}
	}
	return &chunkedImport{deps}
}

var percentPattern = regexp.MustCompile(`(\d+)\s*%`)

// parsePercent returns the last percentage printed on a pv status line.
func parsePercent(line string) (int, bool) {
	matches := percentPattern.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	pct, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return pct, true
}

// meteredImport pipes the dump through pv into mysql and follows pv's
// percentage output.
type meteredImport struct {
	importDeps
}

func (s *meteredImport) Import(ctx context.Context, artifact string, endpoint domain.DBEndpoint) error {
	r, w, err := os.Pipe()
	if err != nil {
		return stageError(domain.StageImport, domain.KindImportFailed, fmt.Errorf("create pipe: %w", err))
	}

	importCmd := s.mysql.Import(endpoint, r)
	importCmd.Timeout = s.timeout
	imp, err := s.runner.Start(ctx, importCmd)
	_ = r.Close()
	if err != nil {
		_ = w.Close()
		return stageError(domain.StageImport, domain.KindImportFailed, err)
	}

	meterCmd := s.mysql.Meter(artifact, w)
	meterCmd.Timeout = s.timeout
	meter, err := s.runner.Start(ctx, meterCmd)
	_ = w.Close()
	if err != nil {
		imp.Kill()
		_, _ = imp.Wait(nil)
		return stageError(domain.StageImport, domain.KindImportFailed, err)
	}

	_, meterErr := meter.Wait(func(line string) {
		if pct, ok := parsePercent(line); ok {
			s.progress.Advance(domain.StageImport, pct, fmt.Sprintf("Importing database... %d%%", pct))
		}
	})
	if meterErr != nil {
		imp.Kill()
	}

	// mysql's own failure explains a broken pipe better than pv's; only our
	// own Kill after a pv failure is left to pv
	_, importErr := imp.Wait(nil)
	if importErr != nil && !(meterErr != nil && errors.Is(importErr, procrun.ErrKilled)) {
		return stageError(domain.StageImport, domain.KindImportFailed, importErr)
	}
	if meterErr != nil {
		return stageError(domain.StageImport, domain.KindImportFailed, meterErr)
	}

	s.progress.Report(domain.StageImport, 100, "Import complete")
	return nil
}

// chunkedImport streams the dump into mysql's stdin itself.
type chunkedImport struct {
	importDeps
}

func (s *chunkedImport) Import(ctx context.Context, artifact string, endpoint domain.DBEndpoint) error {
	f, err := os.Open(artifact)
	if err != nil {
		return stageError(domain.StageImport, domain.KindImportFailed, fmt.Errorf("open dump file: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return stageError(domain.StageImport, domain.KindImportFailed, fmt.Errorf("stat dump file: %w", err))
	}
	size := info.Size()

	cmd := s.mysql.Import(endpoint, nil)
	cmd.Timeout = s.timeout
	imp, err := s.runner.Start(ctx, cmd)
	if err != nil {
		return stageError(domain.StageImport, domain.KindImportFailed, err)
	}

	_, pipeErr := imp.PipeInto(f, func(total int64) {
		if size <= 0 {
			return
		}
		pct := int(total * 100 / size)
		s.progress.Advance(domain.StageImport, pct, fmt.Sprintf("Importing database... %d%%", pct))
	})

	// mysql's own exit status explains a broken pipe better than the write error
	if _, err := imp.Wait(nil); err != nil {
		return stageError(domain.StageImport, domain.KindImportFailed, err)
	}
	if pipeErr != nil {
		return stageError(domain.StageImport, domain.KindImportFailed, pipeErr)
	}

	s.progress.Report(domain.StageImport, 100, "Import complete")
	return nil
}
