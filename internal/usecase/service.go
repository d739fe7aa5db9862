package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/semmidev/dbpull/internal/adapter/shell"
	"github.com/semmidev/dbpull/internal/config"
	"github.com/semmidev/dbpull/internal/domain"
)

// JobQueue hands pulls to a background worker.
type JobQueue interface {
	Enqueue(ctx context.Context, req domain.JobRequest) (uint, error)
}

// Service is the entry point for running pulls, inline or queued. Both paths
// share the same preflight, and at most one pull runs per process.
type Service struct {
	cfg      *config.Config
	puller   *Puller
	queue    JobQueue
	offsite  *Offsite
	notifier domain.Notifier
	logger   domain.Logger

	mu sync.Mutex
}

// NewService wires the pull entry points. queue, offsite and notifier may be nil.
func NewService(
	cfg *config.Config,
	puller *Puller,
	queue JobQueue,
	offsite *Offsite,
	notifier domain.Notifier,
	logger domain.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		puller:   puller,
		queue:    queue,
		offsite:  offsite,
		notifier: notifier,
		logger:   logger,
	}
}

// Preflight applies the production safety gate and validates configuration
// without starting any process.
func (s *Service) Preflight(req domain.JobRequest) (*domain.Endpoints, error) {
	if s.cfg.IsProduction() && !req.Force {
		s.logger.Warnf("Refusing to pull into a production environment without force")
		return nil, domain.ErrProductionRefused
	}

	ep, err := ResolveEndpoints(s.cfg.Local, s.cfg.Remote, s.cfg.SSH)
	if err != nil {
		return nil, err
	}

	var reasons []string
	if s.cfg.Pull.VerifyKey {
		if err := shell.CheckKey(ep.Shell.KeyPath); err != nil {
			reasons = append(reasons, err.Error())
		}
	}
	if ep.Shell.KnownHostsFile != "" {
		if err := shell.CheckKnownHosts(ep.Shell.KnownHostsFile); err != nil {
			reasons = append(reasons, err.Error())
		}
	}
	if len(reasons) > 0 {
		return nil, &domain.ConfigError{Reasons: reasons}
	}

	return ep, nil
}

// RunNow runs a pull to completion, bounding every process by pull.timeout.
func (s *Service) RunNow(ctx context.Context, req domain.JobRequest, sink domain.ProgressSink) (*domain.Outcome, error) {
	ep, err := s.Preflight(req)
	if err != nil {
		return nil, err
	}

	return s.execute(ctx, ep, req, sink, s.cfg.Pull.Timeout)
}

// Enqueue validates the request and hands it to the background queue.
func (s *Service) Enqueue(ctx context.Context, req domain.JobRequest) (uint, error) {
	if s.queue == nil {
		return 0, errors.New("background queue is not configured")
	}
	if _, err := s.Preflight(req); err != nil {
		return 0, err
	}

	id, err := s.queue.Enqueue(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("enqueue pull: %w", err)
	}

	s.logger.Infof("Queued pull #%d (trigger: %s)", id, req.Trigger)
	return id, nil
}

// RunQueued executes a queued request. The whole job is bounded by
// pull.job_timeout and individual processes are not limited.
func (s *Service) RunQueued(ctx context.Context, req domain.JobRequest) (*domain.Outcome, error) {
	ep, err := s.Preflight(req)
	if err != nil {
		return nil, err
	}

	if s.cfg.Pull.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Pull.JobTimeout)
		defer cancel()
	}

	return s.execute(ctx, ep, req, nil, 0)
}

func (s *Service) execute(ctx context.Context, ep *domain.Endpoints, req domain.JobRequest, sink domain.ProgressSink, timeout time.Duration) (*domain.Outcome, error) {
	if !s.mu.TryLock() {
		return nil, domain.ErrPullInProgress
	}
	defer s.mu.Unlock()

	s.logger.Infof("=== Pulling %s from %s into %s ===", ep.Remote.Database, ep.Shell.Host, ep.Local.Database)

	outcome, err := s.puller.Pull(ctx, PullRequest{
		Endpoints:  ep,
		SkipBackup: req.SkipBackup,
		Timeout:    timeout,
		Sink:       sink,
	})
	if err != nil {
		s.logger.Errorf("Pull failed at %s: %v", outcome.FailedStage, err)
	} else {
		s.logger.Infof("Pull completed in %s", outcome.Duration().Round(time.Second))
		if outcome.BackupPath != "" {
			s.logger.Infof("Local backup kept at %s", outcome.BackupPath)
		}
	}

	if err == nil && outcome.BackupPath != "" && s.offsite != nil {
		if shipErr := s.offsite.Ship(ctx, outcome.BackupPath); shipErr != nil {
			s.logger.Errorf("Offsite copy failed: %v", shipErr)
		}
	}

	s.notify(ctx, ep, outcome)

	return outcome, err
}

func (s *Service) notify(ctx context.Context, ep *domain.Endpoints, outcome *domain.Outcome) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.Notify(context.WithoutCancel(ctx), summary(ep, outcome)); err != nil {
		s.logger.Warnf("Failed to send notification: %v", err)
	}
}

func summary(ep *domain.Endpoints, outcome *domain.Outcome) string {
	if outcome.State == domain.StateDone {
		return fmt.Sprintf("✅ Pulled %s from %s into %s in %s",
			ep.Remote.Database, ep.Shell.Host, ep.Local.Database, outcome.Duration().Round(time.Second))
	}

	return fmt.Sprintf("❌ Pull of %s from %s failed at %s: %v",
		ep.Remote.Database, ep.Shell.Host, outcome.FailedStage, outcome.Err)
}
