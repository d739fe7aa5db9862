// Package procrun launches the external tools a pull depends on. It is the
// only package that spawns OS processes.
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ChunkSize is the write size used by Handle.PipeInto.
const ChunkSize = 64 * 1024

const waitDelay = 5 * time.Second

// Command describes one process invocation. Env entries are appended to the
// parent environment. A zero Timeout means no timeout.
type Command struct {
	Name      string
	Args      []string
	Env       []string
	Stdin     io.Reader
	Stdout    io.Writer
	PipeStdin bool
	Timeout   time.Duration
}

// String renders the command line without its environment, so secrets passed
// through Env never end up in logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

type Runner interface {
	// Run blocks until the process exits.
	Run(ctx context.Context, cmd Command) (*Result, error)
	// Start launches the process and returns immediately.
	Start(ctx context.Context, cmd Command) (Handle, error)
}

type Handle interface {
	Running() bool
	// Wait blocks until the process exits or its timeout elapses. onLine, when
	// not nil, receives every stderr line in order, including lines written
	// before Wait was called.
	Wait(onLine func(line string)) (*Result, error)
	// PipeInto copies src to the process stdin in ChunkSize writes and closes
	// stdin afterwards. onChunk receives the running total after each write.
	PipeInto(src io.Reader, onChunk func(total int64)) (int64, error)
	Kill()
}

type Exec struct{}

func New() *Exec {
	return &Exec{}
}

func (e *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	h, err := e.Start(ctx, c)
	if err != nil {
		return nil, err
	}

	return h.Wait(nil)
}

func (e *Exec) Start(ctx context.Context, c Command) (Handle, error) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(runCtx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.WaitDelay = waitDelay

	h := &handle{
		name:   c.Name,
		cmd:    cmd,
		ctx:    runCtx,
		cancel: cancel,
		stderr: newLineBuffer(tailLimit),
		done:   make(chan struct{}),
	}
	setProcessGroup(cmd, func() { h.signalled.Store(true) })

	cmd.Stderr = h.stderr
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	} else {
		h.stdout = &bytes.Buffer{}
		cmd.Stdout = h.stdout
	}

	switch {
	case c.PipeStdin:
		stdin, err := cmd.StdinPipe()
		if err != nil {
			cancel()
			return nil, &LaunchError{Name: c.Name, Err: err}
		}
		h.stdin = stdin
	case c.Stdin != nil:
		cmd.Stdin = c.Stdin
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &LaunchError{Name: c.Name, Err: err}
	}

	go h.reap()

	return h, nil
}

func exitCode(state *os.ProcessState, err error) int {
	if state != nil {
		return state.ExitCode()
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}

	return -1
}

func describe(name string, err error) string {
	return fmt.Sprintf("%s: %v", name, err)
}
