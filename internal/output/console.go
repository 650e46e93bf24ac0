package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/apicontract/internal/result"
)

// ConsoleLogger prints one line per finished case. It is safe for use by
// concurrent workers.
type ConsoleLogger struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	p       palette
}

// NewConsoleLogger writes to w. In verbose mode passed cases are listed too.
func NewConsoleLogger(w io.Writer, verbose bool) *ConsoleLogger {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleLogger{w: w, verbose: verbose, p: newPalette()}
}

// LogCase prints r.
func (l *ConsoleLogger) LogCase(r result.TestResult) {
	if r.Passed() && !l.verbose {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s %s (%s)", l.p.label(r), r.Case, r.Duration.Round(100*time.Microsecond))
	if r.Attempts > 1 {
		line += fmt.Sprintf(" after %d attempts", r.Attempts)
	}
	if detail := r.Detail(); detail != "" {
		line += ": " + detail
	}
	fmt.Fprintln(l.w, line)
}
