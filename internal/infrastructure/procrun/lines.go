package procrun

import (
	"bytes"
	"sync"
)

const (
	tailLimit  = 64 * 1024
	maxPending = 4096
)

// lineBuffer collects a process's stderr. It keeps a bounded tail for error
// reports and splits the stream into lines on '\n' or '\r'. Lines written
// before a subscriber exists are held until Subscribe.
type lineBuffer struct {
	mu      sync.Mutex
	limit   int
	tail    []byte
	partial []byte
	pending []string
	onLine  func(string)
}

func newLineBuffer(limit int) *lineBuffer {
	return &lineBuffer{limit: limit}
}

func (b *lineBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tail = append(b.tail, p...)
	if over := len(b.tail) - b.limit; over > 0 {
		b.tail = append(b.tail[:0], b.tail[over:]...)
	}

	rest := p
	for len(rest) > 0 {
		i := bytes.IndexAny(rest, "\r\n")
		if i < 0 {
			b.partial = append(b.partial, rest...)
			if len(b.partial) > b.limit {
				b.emit(string(b.partial))
				b.partial = b.partial[:0]
			}
			break
		}
		b.partial = append(b.partial, rest[:i]...)
		b.emit(string(b.partial))
		b.partial = b.partial[:0]
		rest = rest[i+1:]
	}

	return len(p), nil
}

func (b *lineBuffer) emit(line string) {
	if line == "" {
		return
	}
	if b.onLine != nil {
		b.onLine(line)
		return
	}
	if len(b.pending) >= maxPending {
		b.pending = b.pending[1:]
	}
	b.pending = append(b.pending, line)
}

func (b *lineBuffer) Subscribe(onLine func(string)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, line := range b.pending {
		onLine(line)
	}
	b.pending = nil
	b.onLine = onLine
}

// Flush emits a trailing line that had no terminator.
func (b *lineBuffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.emit(string(b.partial))
	b.partial = b.partial[:0]
}

func (b *lineBuffer) Tail() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return string(b.tail)
}
