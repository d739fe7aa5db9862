package domain

import "time"

type State string

const (
	StateValidating State = "validating"
	StateBackingUp  State = "backing_up"
	StateDumping    State = "dumping"
	StateImporting  State = "importing"
	StateCleaningUp State = "cleaning_up"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// JobRequest is what a caller asks for, either inline or through the queue.
type JobRequest struct {
	SkipBackup bool
	Force      bool
	Trigger    string
}

// Outcome is the terminal result of one pull.
type Outcome struct {
	State       State
	FailedStage Stage
	BackupPath  string
	ImportMode  string
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
