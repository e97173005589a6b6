package ingestion

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/poiesic/imgfeat/core"
)

const maxLineSize = 1 << 20

// StreamReader turns lines of text into references on a queue.
// Blank lines are skipped. The reader pushes no end marker at EOF.
type StreamReader struct {
	src    io.Reader
	queue  *Queue[core.Reference]
	logger *slog.Logger
	count  atomic.Int64
	done   chan struct{}
	err    error
}

// NewStreamReader creates a reader that feeds queue from src.
func NewStreamReader(src io.Reader, queue *Queue[core.Reference], logger *slog.Logger) *StreamReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamReader{
		src:    src,
		queue:  queue,
		logger: logger.With("component", "reader"),
		done:   make(chan struct{}),
	}
}

// Start runs the reader on its own goroutine.
func (s *StreamReader) Start(ctx context.Context) {
	go func() {
		s.err = s.Read(ctx)
		close(s.done)
	}()
}

// Read consumes src until EOF, a read error or cancellation.
func (s *StreamReader) Read(ctx context.Context) error {
	scanner := bufio.NewScanner(s.src)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.queue.Push(core.Reference(line))
		s.count.Add(1)
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("error reading references", "err", err)
		return err
	}
	s.logger.Debug("input exhausted", "references", s.Count())
	return nil
}

// Count returns the number of references enqueued so far.
func (s *StreamReader) Count() int {
	return int(s.count.Load())
}

// Done is closed when a reader started with Start returns.
func (s *StreamReader) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that ended the reader. Only valid after Done is closed.
func (s *StreamReader) Err() error {
	return s.err
}
