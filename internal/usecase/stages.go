package usecase

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

// managedArtifact is a temporary file owned by the orchestrator. Discard
// removes it once; later calls are no-ops.
type managedArtifact struct {
	path string
	once sync.Once
	err  error
}

func newManagedArtifact(dir string) (*managedArtifact, error) {
	f, err := os.CreateTemp(dir, "db_pull_*.sql")
	if err != nil {
		return nil, fmt.Errorf("create dump file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("close dump file: %w", err)
	}

	return &managedArtifact{path: f.Name()}, nil
}

func (a *managedArtifact) Path() string {
	return a.path
}

func (a *managedArtifact) Discard() error {
	a.once.Do(func() {
		if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			a.err = fmt.Errorf("remove dump file: %w", err)
		}
	})
	return a.err
}

// watchGrowth polls the size of path while h runs and reports it against
// estimate. It returns once the process has exited.
func watchGrowth(h procrun.Handle, path string, estimate int64, interval time.Duration, report func(size int64, pct int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for h.Running() {
		if info, err := os.Stat(path); err == nil {
			report(info.Size(), growthPercent(info.Size(), estimate))
		}
		<-ticker.C
	}
}

// growthPercent is capped at 99 so only a successful exit reaches 100. An
// unknown estimate keeps the stage at its floor.
func growthPercent(size, estimate int64) int {
	if estimate <= 0 || size <= 0 {
		return 0
	}
	pct := size * 100 / estimate
	if pct > 99 {
		return 99
	}
	return int(pct)
}

// stageError classifies a process failure for stage.
func stageError(stage domain.Stage, kind domain.ErrorKind, err error) *domain.PullError {
	pe := &domain.PullError{Stage: stage, Kind: kind, Err: err}

	var (
		launchErr *procrun.LaunchError
		exitErr   *procrun.ExitError
	)
	switch {
	case errors.As(err, &launchErr):
		pe.Kind = domain.KindProcessLaunchFailed
	case errors.Is(err, procrun.ErrTimeout):
		pe.Kind = domain.KindTimeoutExceeded
	case errors.As(err, &exitErr):
		pe.Output = exitErr.Stderr
	}

	return pe
}
