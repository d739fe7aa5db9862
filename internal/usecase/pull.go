package usecase

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/semmidev/dbpull/internal/adapter/database"
	"github.com/semmidev/dbpull/internal/adapter/shell"
	"github.com/semmidev/dbpull/internal/domain"
	"github.com/semmidev/dbpull/internal/infrastructure/procrun"
)

// EstimatorFactory builds size estimators for the local and remote schema.
type EstimatorFactory interface {
	Local(endpoint domain.DBEndpoint) domain.SizeEstimator
	Remote(sh *shell.Client, endpoint domain.DBEndpoint) domain.SizeEstimator
}

type PullerConfig struct {
	BackupDir    string
	TempDir      string
	PollInterval time.Duration
	// ImportMode is auto, metered or chunked.
	ImportMode string
	SSHBinary  string
	Weights    Weights
}

// Puller runs the backup, dump and import stages of one pull at a time.
type Puller struct {
	cfg        PullerConfig
	runner     procrun.Runner
	mysql      *database.MySQL
	estimators EstimatorFactory
	logger     domain.Logger
	now        func() time.Time
}

func NewPuller(cfg PullerConfig, runner procrun.Runner, mysql *database.MySQL, estimators EstimatorFactory, logger domain.Logger) *Puller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.Weights.Sum() != 100 {
		cfg.Weights = DefaultWeights
	}

	return &Puller{
		cfg:        cfg,
		runner:     runner,
		mysql:      mysql,
		estimators: estimators,
		logger:     logger,
		now:        time.Now,
	}
}

type PullRequest struct {
	Endpoints  *domain.Endpoints
	SkipBackup bool
	// Timeout bounds each external process; 0 means no limit.
	Timeout time.Duration
	Sink    domain.ProgressSink
}

// transferJob is the mutable state of one Pull call.
type transferJob struct {
	endpoints *domain.Endpoints
	shell     *shell.Client
	timeout   time.Duration
	progress  *Progress
}

// Pull runs a complete transfer. The returned outcome is never nil. On
// failure the error is a *domain.PullError, or a *domain.ConfigError when
// the endpoints are incomplete.
func (p *Puller) Pull(ctx context.Context, req PullRequest) (outcome *domain.Outcome, err error) {
	outcome = &domain.Outcome{State: domain.StateValidating, StartedAt: p.now()}
	defer func() {
		outcome.FinishedAt = p.now()
		if err != nil {
			outcome.State = domain.StateFailed
			outcome.FailedStage = domain.StageOf(err)
			outcome.Err = err
		}
	}()

	if err := ValidateEndpoints(req.Endpoints); err != nil {
		return outcome, err
	}

	job := &transferJob{
		endpoints: req.Endpoints,
		shell:     shell.New(p.cfg.SSHBinary, req.Endpoints.Shell),
		timeout:   req.Timeout,
		progress:  NewProgress(req.Sink, p.cfg.Weights, p.logger),
	}

	if req.SkipBackup {
		job.progress.Emit("Skipping backup", 0)
	} else {
		outcome.State = domain.StateBackingUp
		path, err := p.backup(ctx, job)
		if err != nil {
			return outcome, err
		}
		outcome.BackupPath = path
	}

	outcome.State = domain.StateDumping
	artifact, err := newManagedArtifact(p.cfg.TempDir)
	if err != nil {
		return outcome, stageError(domain.StageDump, domain.KindDumpFailed, err)
	}
	defer func() {
		if discardErr := artifact.Discard(); discardErr != nil {
			p.logger.Errorf("Failed to remove dump file %s: %v", artifact.Path(), discardErr)
			if err != nil {
				err = multierr.Append(err, discardErr)
			}
		}
	}()

	if err := p.dump(ctx, job, artifact.Path()); err != nil {
		return outcome, err
	}

	outcome.State = domain.StateImporting
	mode := DetectImportMode(ctx, p.runner, p.mysql, p.cfg.ImportMode)
	outcome.ImportMode = mode.String()
	p.logger.Infof("[%s] Importing into local database using %s import", job.endpoints.Local.Database, mode)

	strategy := newImportStrategy(mode, importDeps{
		runner:   p.runner,
		mysql:    p.mysql,
		progress: job.progress,
		timeout:  job.timeout,
	})
	if err := strategy.Import(ctx, artifact.Path(), job.endpoints.Local); err != nil {
		return outcome, err
	}

	outcome.State = domain.StateCleaningUp
	if err := artifact.Discard(); err != nil {
		p.logger.Warnf("Dump file %s was not removed: %v", artifact.Path(), err)
	}

	outcome.State = domain.StateDone
	return outcome, nil
}
