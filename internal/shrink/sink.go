package shrink

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/roach88/strata/internal/ir"
)

// Sink receives the minimized fact set. Write is called at most once per
// Minimize call, and only after convergence on a reproducing subset.
type Sink interface {
	Write(facts []ir.Fact) error
}

// WriterSink streams facts to an io.Writer, one program-literal rendering
// per line.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink wraps a writer as a Sink.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write renders one fact per line in SymbolName(value1, value2, ...) form.
func (s *WriterSink) Write(facts []ir.Fact) error {
	bw := bufio.NewWriter(s.w)
	for _, f := range facts {
		if _, err := fmt.Fprintln(bw, f.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FileSink writes the fact set to a file path, creating or truncating it.
// The file is written atomically with respect to partial content: a write
// error removes the partial file.
type FileSink struct {
	Path string
}

// Write persists the facts to the configured path.
func (s *FileSink) Write(facts []ir.Fact) error {
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.Path, err)
	}
	ws := &WriterSink{w: f}
	if err := ws.Write(facts); err != nil {
		f.Close()
		os.Remove(s.Path)
		return fmt.Errorf("write %s: %w", s.Path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(s.Path)
		return fmt.Errorf("close %s: %w", s.Path, err)
	}
	return nil
}
