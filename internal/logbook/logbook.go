// Package logbook keeps the planner's journey log: one short line per thing
// the user did or the service answered during an interview (syllabus upload,
// questions received, answers submitted, plan version ready). The TUI log
// panel shows its tail; the structured zap log in internal/logging carries
// the detail.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level tags a journey line. Anything outside the three known levels is
// written as INFO.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

func (lv Level) normalized() Level {
	switch Level(strings.ToUpper(strings.TrimSpace(string(lv)))) {
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// stampLayout keeps lines short enough for the side panel.
const stampLayout = "2006-01-02 15:04:05"

// Logbook appends journey lines to a single file. A nil *Logbook drops
// every write and reads back empty, so callers never need to check for one.
type Logbook struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// Option configures a Logbook.
type Option func(*Logbook)

// WithClock replaces the wall clock used to stamp lines.
func WithClock(now func() time.Time) Option {
	return func(l *Logbook) {
		if now != nil {
			l.now = now
		}
	}
}

// New prepares the journey log at path, creating its directory. The file
// itself appears on the first write.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: %w", err)
	}
	l := &Logbook{path: path, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path is the journey log file, or "" for a nil logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes one journey line. Service details can span several lines;
// they are folded onto one so Tail counts stay one per event. Blank
// messages are skipped.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	text := flatten(message)
	if text == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %-5s %s\n", l.now().UTC().Format(stampLayout), level.normalized(), text)
}

func flatten(message string) string {
	return strings.Join(strings.Fields(message), " ")
}

// Tail returns the last n journey lines, oldest first, and how many lines
// the log holds in total. A missing file reads as an empty journey.
func (l *Logbook) Tail(n int) ([]string, int) {
	if l == nil || n <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer f.Close()

	var recent []string
	count := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		count++
		recent = append(recent, sc.Text())
		if len(recent) > n {
			recent = recent[1:]
		}
	}
	return recent, count
}

// Info notes a step of the interview going as planned.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn notes a step the user can retry, such as a rejected upload.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error notes a failure the session could not recover from on its own.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
