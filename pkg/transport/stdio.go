package transport

import (
	"bufio"
	"io"
	"os"
)

// Stdio is the local install-method transport: process stdin/stdout,
// unmodified. The expanded 1 MiB scan buffer lives in pkg/protocol's
// LineScanner, which wraps whatever Reader() returns.
type Stdio struct {
	in  *os.File
	out *bufio.Writer
}

// NewStdio wires the transport directly to the process's stdin/stdout.
func NewStdio() *Stdio {
	return &Stdio{
		in:  os.Stdin,
		out: bufio.NewWriter(os.Stdout),
	}
}

func (s *Stdio) Reader() io.Reader { return s.in }

func (s *Stdio) Writer() io.Writer { return &flushingWriter{s.out} }

// Close flushes any buffered output. Stdin/stdout themselves are not
// closed — the process owns their lifetime.
func (s *Stdio) Close() error {
	return s.out.Flush()
}

// flushingWriter flushes the underlying bufio.Writer after every write
// so the blank-line sentinel the writer package emits reaches the host
// immediately rather than waiting for the buffer to fill.
type flushingWriter struct {
	w *bufio.Writer
}

func (f *flushingWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	if err := f.w.Flush(); err != nil {
		return n, err
	}
	return n, nil
}
