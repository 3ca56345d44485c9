package sink

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
)

// Sink is an append-only destination for the compressed stream. Close is
// idempotent: closing an already-closed sink is a no-op and must not disturb
// previously written data.
type Sink interface {
	Write(p []byte) error
	WriteByte(b byte) error
	Close() error
}

// FileSink writes the stream to a regular file through a buffered writer.
type FileSink struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	closed bool
}

// Create creates or truncates the named file and returns a sink over it.
func Create(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create sink %s: %w", path, err)
	}

	return &FileSink{
		path: path,
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Path returns the file path backing this sink.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Write(p []byte) error {
	if s.closed {
		return fmt.Errorf("write to closed sink %s", s.path)
	}
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("sink write failed: %w", err)
	}
	return nil
}

func (s *FileSink) WriteByte(b byte) error {
	if s.closed {
		return fmt.Errorf("write to closed sink %s", s.path)
	}
	if err := s.w.WriteByte(b); err != nil {
		return fmt.Errorf("sink write failed: %w", err)
	}
	return nil
}

// Close flushes buffered data and closes the file. Safe to call more than once.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	flushErr := s.w.Flush()
	closeErr := s.file.Close()

	if flushErr != nil {
		return fmt.Errorf("failed to flush sink %s: %w", s.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close sink %s: %w", s.path, closeErr)
	}

	slog.Debug("Sink closed", "path", s.path)
	return nil
}
