// Package logging wraps github.com/charmbracelet/log into the
// appliance's one structured logger, handed to every component
// explicitly as a *log.Logger rather than reached for as a global
// singleton, so tests can inject a discard sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// New returns a logger writing to w at the given level.
func New(w io.Writer, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	l.SetLevel(level)

	return l
}

// DailyFileWriter opens (creating as needed) a daily-named log file
// under dir, reopening it whenever the day rolls over. pattern follows
// strftime syntax, e.g. "appliance-%Y%m%d.log", matching the teacher's
// own timestamp_format handling (src/xmit.go, src/tq.go).
type DailyFileWriter struct {
	dir     string
	pattern string
	current string
	f       *os.File
}

// NewDailyFileWriter opens today's file under dir using pattern.
func NewDailyFileWriter(dir, pattern string) (*DailyFileWriter, error) {
	w := &DailyFileWriter{dir: dir, pattern: pattern}
	if err := w.rollIfNeeded(time.Now()); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *DailyFileWriter) rollIfNeeded(now time.Time) error {
	name, err := strftime.Format(w.pattern, now)
	if err != nil {
		return fmt.Errorf("logging: format pattern %q: %w", w.pattern, err)
	}

	if name == w.current && w.f != nil {
		return nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("logging: create log dir %s: %w", w.dir, err)
	}

	path := filepath.Join(w.dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file %s: %w", path, err)
	}

	if w.f != nil {
		_ = w.f.Close()
	}

	w.f = f
	w.current = name

	return nil
}

func (w *DailyFileWriter) Write(p []byte) (int, error) {
	if err := w.rollIfNeeded(time.Now()); err != nil {
		return 0, err
	}

	return w.f.Write(p)
}

func (w *DailyFileWriter) Close() error {
	if w.f == nil {
		return nil
	}

	return w.f.Close()
}
