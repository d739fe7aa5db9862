package domain

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind int

const (
	KindConfigInvalid ErrorKind = iota + 1
	KindBackupFailed
	KindDumpFailed
	KindImportFailed
	KindTimeoutExceeded
	KindProcessLaunchFailed
)

var (
	ErrConfigInvalid       = errors.New("configuration invalid")
	ErrBackupFailed        = errors.New("local backup failed")
	ErrDumpFailed          = errors.New("remote dump failed")
	ErrImportFailed        = errors.New("local import failed")
	ErrTimeoutExceeded     = errors.New("timeout exceeded")
	ErrProcessLaunchFailed = errors.New("process launch failed")

	// ErrProductionRefused is returned by the safety gate when the local
	// environment is flagged as production and no override was given.
	ErrProductionRefused = errors.New("refusing to run in production without force")
	// ErrPullInProgress is returned when another pull is already running in this process.
	ErrPullInProgress = errors.New("a pull is already in progress")
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfigInvalid:
		return "config_invalid"
	case KindBackupFailed:
		return "backup_failed"
	case KindDumpFailed:
		return "dump_failed"
	case KindImportFailed:
		return "import_failed"
	case KindTimeoutExceeded:
		return "timeout_exceeded"
	case KindProcessLaunchFailed:
		return "process_launch_failed"
	}

	return "unknown"
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfigInvalid:
		return ErrConfigInvalid
	case KindBackupFailed:
		return ErrBackupFailed
	case KindDumpFailed:
		return ErrDumpFailed
	case KindImportFailed:
		return ErrImportFailed
	case KindTimeoutExceeded:
		return ErrTimeoutExceeded
	case KindProcessLaunchFailed:
		return ErrProcessLaunchFailed
	}

	return nil
}

// PullError is the terminal error of a failed pull. It matches the sentinel
// of its Kind and the underlying cause with errors.Is.
type PullError struct {
	Stage  Stage
	Kind   ErrorKind
	Output string
	Err    error
}

func (e *PullError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Stage, e.Kind.sentinel())
	switch out := strings.TrimSpace(e.Output); {
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	case out != "":
		fmt.Fprintf(&b, ": %s", out)
	}

	return b.String()
}

func (e *PullError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// ConfigError reports every missing required setting at once.
type ConfigError struct {
	Missing []string
	Reasons []string
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, len(e.Reasons)+1)
	parts = append(parts, e.Reasons...)
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required configuration: "+strings.Join(e.Missing, ", "))
	}

	return strings.Join(parts, "; ")
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// StageOf returns the stage a pull failed in, or StageValidate for errors
// that do not carry one.
func StageOf(err error) Stage {
	var pe *PullError
	if errors.As(err, &pe) {
		return pe.Stage
	}

	return StageValidate
}
