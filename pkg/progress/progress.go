// Package progress provides timestamped logging to file and stdout with color support.
package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Colors holds "r,g,b" color values for the log, empty values keep the defaults.
type Colors struct {
	Info      string
	Warn      string
	Error     string
	Timestamp string
	Header    string
	Console   string
}

// Logger writes timestamped output to both file and stdout.
// It's safe for concurrent use, console messages arrive from browser event goroutines.
type Logger struct {
	mu        sync.Mutex
	file      *os.File
	path      string
	stdout    io.Writer
	startTime time.Time
	debug     bool

	infoColor      *color.Color
	warnColor      *color.Color
	errorColor     *color.Color
	timestampColor *color.Color
	headerColor    *color.Color
	consoleColor   *color.Color
}

// Config holds logger configuration.
type Config struct {
	Dir     string    // directory for the log file, no file is written if empty
	Name    string    // run name, used to derive the log filename
	NoColor bool      // disable color output (sets color.NoColor globally)
	Debug   bool      // print Debug messages
	Colors  Colors    // custom colors
	Stdout  io.Writer // defaults to os.Stdout
}

// NewLogger creates a logger writing to stdout and, if cfg.Dir is set, to a log file.
func NewLogger(cfg Config) (*Logger, error) {
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			cfg.NoColor = true
		}
	}
	// set global color setting
	if cfg.NoColor {
		color.NoColor = true
	}

	l := &Logger{
		stdout:         stdout,
		startTime:      time.Now(),
		debug:          cfg.Debug,
		infoColor:      newColor(cfg.Colors.Info, color.FgWhite),
		warnColor:      newColor(cfg.Colors.Warn, color.FgYellow),
		errorColor:     newColor(cfg.Colors.Error, color.FgRed),
		timestampColor: newColor(cfg.Colors.Timestamp, color.FgHiBlack),
		headerColor:    newColor(cfg.Colors.Header, color.FgCyan),
		consoleColor:   newColor(cfg.Colors.Console, color.FgGreen),
	}

	if cfg.Dir == "" {
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	logPath := filepath.Join(cfg.Dir, logFilename(cfg.Name))
	f, err := os.Create(logPath) //nolint:gosec // path derived from config
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	l.file = f
	l.path = logPath

	l.writeFile("# Tunecheck Run Log\n")
	l.writeFile("Run: %s\n", cfg.Name)
	l.writeFile("Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	l.writeFile("%s\n\n", strings.Repeat("-", 60))

	return l, nil
}

// newColor makes a color from "r,g,b", falling back to def on empty or malformed values.
func newColor(rgb string, def color.Attribute) *color.Color {
	parts := strings.Split(rgb, ",")
	if len(parts) != 3 {
		return color.New(def)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return color.New(def)
		}
		vals[i] = v
	}
	return color.RGB(vals[0], vals[1], vals[2])
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// timestampFormat is the format for timestamps: YY-MM-DD HH:MM:SS
const timestampFormat = "06-01-02 15:04:05"

// Print writes a timestamped message to both file and stdout.
func (l *Logger) Print(format string, args ...any) {
	l.printLevel("", l.infoColor, format, args...)
}

// Warn writes a warning message in yellow.
func (l *Logger) Warn(format string, args ...any) {
	l.printLevel("WARN: ", l.warnColor, format, args...)
}

// Error writes an error message in red.
func (l *Logger) Error(format string, args ...any) {
	l.printLevel("ERROR: ", l.errorColor, format, args...)
}

// Debug writes a message only if debug output is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.printLevel("DEBUG: ", l.timestampColor, format, args...)
}

func (l *Logger) printLevel(prefix string, c *color.Color, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format(timestampFormat)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeFile("[%s] %s%s\n", timestamp, prefix, msg)
	l.writeStdout("%s %s\n", l.timestampColor.Sprintf("[%s]", timestamp), c.Sprint(prefix+msg))
}

// Header writes s followed by a line of dashes, preceded by an empty line.
func (l *Logger) Header(s string) {
	dashes := strings.Repeat("-", 80)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeFile("\n%s\n%s\n", s, dashes)
	l.writeStdout("\n%s\n%s\n", l.headerColor.Sprint(s), dashes)
}

// getTerminalWidth returns terminal width, using COLUMNS env var or syscall.
// Defaults to 80 if detection fails. Returns content width (total - 20 for timestamp).
func getTerminalWidth() int {
	const minWidth = 40

	if cols := os.Getenv("COLUMNS"); cols != "" {
		if w, err := strconv.Atoi(cols); err == nil && w > 0 {
			return max(w-20, minWidth)
		}
	}

	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return max(w-20, minWidth)
	}

	return 80 - 20
}

// wrapText wraps text to specified width, breaking on word boundaries.
func wrapText(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	lineLen := 0
	for i, word := range strings.Fields(text) {
		wordLen := len(word)
		switch {
		case i == 0:
			lineLen = wordLen
		case lineLen+1+wordLen <= width:
			result.WriteString(" ")
			lineLen += 1 + wordLen
		default:
			result.WriteString("\n")
			lineLen = wordLen
		}
		result.WriteString(word)
	}
	return result.String()
}

// PrintAligned writes text with timestamp, handling multi-line content properly.
// The first line is timestamped, continuation lines are indented and long lines wrapped on stdout.
func (l *Logger) PrintAligned(text string) {
	timestamp := time.Now().Format(timestampFormat)
	// indent aligns with "[YY-MM-DD HH:MM:SS] "
	l.printAligned("["+timestamp+"] ", l.timestampColor.Sprintf("[%s]", timestamp)+" ", 20, l.infoColor, true, text)
}

// printAligned writes the first line of text after filePrefix (log file) or outPrefix (stdout)
// and the following lines indented by indent spaces. Empty lines are kept.
func (l *Logger) printAligned(filePrefix, outPrefix string, indent int, c *color.Color, wrap bool, text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}

	pad := strings.Repeat(" ", indent)
	width := 0
	if wrap {
		width = max(getTerminalWidth()+20-indent, 20)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	first := true
	for line := range strings.SplitSeq(text, "\n") {
		if line == "" {
			l.writeFile("\n")
			l.writeStdout("\n")
			continue
		}
		if first {
			l.writeFile("%s%s\n", filePrefix, line)
		} else {
			l.writeFile("%s%s\n", pad, line)
		}
		for wrapped := range strings.SplitSeq(wrapText(line, width), "\n") {
			if first {
				l.writeStdout("%s%s\n", outPrefix, c.Sprint(wrapped))
				first = false
				continue
			}
			l.writeStdout("%s%s\n", pad, c.Sprint(wrapped))
		}
		first = false
	}
}

// ConsoleMessage is a message logged by the browser, e.g. with console.log.
type ConsoleMessage struct {
	Time   time.Time
	Level  string // "log", "warning", "error", etc.
	URL    string // script that logged the message
	Line   int
	Column int
	Text   string
}

// consoleRegexp matches the filename, line number and message in messages like
//
//	http://localhost:8080/search-view.js 478:18 "Got response with 1 song(s)"
var consoleRegexp = regexp.MustCompile(`(?s)^https?://[^ ]+/([^ /]+\.[jt]s) (\d+):\d+ (.*)$`)

// FormatConsole formats m as "15:04:05.000 level   file.js:line             message".
// The server URL is dropped from the script location to line up the messages.
func FormatConsole(m ConsoleMessage) string {
	text := m.Text
	if m.URL != "" {
		text = fmt.Sprintf("%s %d:%d %s", m.URL, m.Line, m.Column, m.Text)
	}
	if ms := consoleRegexp.FindStringSubmatch(text); ms != nil {
		if u, err := strconv.Unquote(ms[3]); err == nil {
			ms[3] = u
		}
		text = fmt.Sprintf("%-24s %s", ms[1]+":"+ms[2], ms[3])
	}
	return fmt.Sprintf("%s %-7s %s", m.Time.Format("15:04:05.000"), m.Level, text)
}

// consoleIndent aligns continuation lines of console messages, e.g. stack traces,
// with the level column after "15:04:05.000 ".
const consoleIndent = 13

// Console writes a browser console message.
func (l *Logger) Console(m ConsoleMessage) {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	l.printAligned("", "", consoleIndent, l.consoleColor, false, FormatConsole(m))
}

// Elapsed returns formatted elapsed time since start.
func (l *Logger) Elapsed() string {
	return humanize.RelTime(l.startTime, time.Now(), "", "")
}

// Close writes footer and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	l.writeFile("\n%s\n", strings.Repeat("-", 60))
	l.writeFile("Completed: %s (%s)\n", time.Now().Format("2006-01-02 15:04:05"), l.Elapsed())

	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

func (l *Logger) writeFile(format string, args ...any) {
	if l.file != nil {
		fmt.Fprintf(l.file, format, args...)
	}
}

func (l *Logger) writeStdout(format string, args ...any) {
	fmt.Fprintf(l.stdout, format, args...)
}

// logFilename returns the log filename for the run name.
func logFilename(name string) string {
	if name == "" {
		return "tunecheck.log"
	}
	return fmt.Sprintf("tunecheck-%s.log", strings.ReplaceAll(filepath.Base(name), " ", "_"))
}
