package mon

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Sink receives report output one line at a time. Lines carry no trailing
// newline.
type Sink interface {
	WriteLine(line string)
}

// WriterSink writes each line followed by a newline to W.
type WriterSink struct {
	W io.Writer
}

// WriteLine implements Sink.
func (s WriterSink) WriteLine(line string) {
	fmt.Fprintln(s.W, line)
}

// Lines collects report lines in memory.
type Lines []string

// WriteLine implements Sink.
func (l *Lines) WriteLine(line string) {
	*l = append(*l, line)
}

// ZapSink logs each non-blank line at info level.
type ZapSink struct {
	Logger *zap.Logger
}

// WriteLine implements Sink.
func (s ZapSink) WriteLine(line string) {
	if line == "" {
		return
	}
	s.Logger.Info(line)
}
