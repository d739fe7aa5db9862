package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

type handle struct {
	name   string
	cmd    *exec.Cmd
	ctx    context.Context
	cancel context.CancelFunc

	stdin  io.WriteCloser
	stdout *bytes.Buffer
	stderr *lineBuffer

	killed atomic.Bool
	// signalled is set only when cancellation actually killed the process,
	// not when it had already exited on its own.
	signalled atomic.Bool
	done   chan struct{}
	// set by reap before done is closed
	waitErr error
	ctxErr  error

	once   sync.Once
	result *Result
	err    error
}

// reap is the only caller of cmd.Wait.
func (h *handle) reap() {
	h.waitErr = h.cmd.Wait()
	h.ctxErr = h.ctx.Err()
	h.cancel()
	close(h.done)
}

func (h *handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *handle) Wait(onLine func(string)) (*Result, error) {
	if onLine != nil {
		h.stderr.Subscribe(onLine)
	}

	<-h.done

	h.once.Do(h.finish)

	return h.result, h.err
}

func (h *handle) finish() {
	h.stderr.Flush()

	res := &Result{
		Stderr:   h.stderr.Tail(),
		ExitCode: 0,
	}
	if h.stdout != nil {
		res.Stdout = h.stdout.String()
	}
	h.result = res

	if h.waitErr == nil {
		return
	}

	res.ExitCode = exitCode(h.cmd.ProcessState, h.waitErr)

	// a process that exited with its own status was not ended by our signal
	signalled := h.signalled.Load() && res.ExitCode < 0
	switch {
	case signalled && h.killed.Load():
		h.err = fmt.Errorf("%s: %w", h.name, ErrKilled)
	case signalled && errors.Is(h.ctxErr, context.DeadlineExceeded):
		h.err = fmt.Errorf("%s: %w", h.name, ErrTimeout)
	case signalled && h.ctxErr != nil:
		h.err = fmt.Errorf("%s: %w", h.name, h.ctxErr)
	case res.ExitCode > 0:
		h.err = &ExitError{Name: h.name, Code: res.ExitCode, Stderr: res.Stderr}
	default:
		h.err = errors.New(describe(h.name, h.waitErr))
	}
}

func (h *handle) PipeInto(src io.Reader, onChunk func(int64)) (int64, error) {
	if h.stdin == nil {
		return 0, fmt.Errorf("%s: stdin is not piped", h.name)
	}
	defer h.stdin.Close()

	buf := make([]byte, ChunkSize)
	var total int64

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, err := h.stdin.Write(buf[:n]); err != nil {
				return total, fmt.Errorf("write to %s: %w", h.name, err)
			}
			total += int64(n)
			if onChunk != nil {
				onChunk(total)
			}
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, fmt.Errorf("read input for %s: %w", h.name, rerr)
		}
	}
}

func (h *handle) Kill() {
	if !h.Running() {
		return
	}
	h.killed.Store(true)
	h.cancel()
}
