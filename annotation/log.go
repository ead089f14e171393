package annotation

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/timefmt-go"
)

// LogLevel represents the severity level for logs.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO":
		return LevelInfo
	case "DEBUG":
		return LevelDebug
	default:
		return LevelWarn
	}
}

// Logger is the interface used by the bookkeeper and the driver for logging.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a child logger augmented with the provided fields.
	With(fields map[string]any) Logger
}

// textFormatter emits compact single-line text logs.
// Format: [LEVEL] ts msg key1=val1 key2=val2 ...
type textFormatter struct {
	timeFormat string // empty disables timestamps
}

func (f *textFormatter) format(ts time.Time, level LogLevel, msg string, fields map[string]any) []byte {
	var b strings.Builder
	b.Grow(128)

	b.WriteByte('[')
	b.WriteString(level.String())
	b.WriteString("] ")

	if f.timeFormat != "" {
		b.WriteString(timefmt.Format(ts.UTC(), f.timeFormat))
		b.WriteByte(' ')
	}

	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(safeSprint(fields[k]))
		}
	}

	b.WriteByte('\n')
	return []byte(b.String())
}

func safeSprint(v any) string {
	switch t := v.(type) {
	case string:
		if strings.IndexFunc(t, func(r rune) bool { return r <= ' ' }) >= 0 {
			return fmt.Sprintf("%q", t)
		}
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

type defaultLogger struct {
	out        io.Writer
	level      LogLevel
	formatter  *textFormatter
	baseFields map[string]any

	// mu is shared by every child logger writing to out.
	mu *sync.Mutex
}

// NewLogger creates a text logger with the given level and strftime
// timestamp layout. If w is nil, os.Stderr is used.
func NewLogger(level LogLevel, timeFormat string, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &defaultLogger{
		out:        w,
		level:      level,
		formatter:  &textFormatter{timeFormat: timeFormat},
		baseFields: make(map[string]any),
		mu:         &sync.Mutex{},
	}
}

type noopLogger struct{}

func (l *noopLogger) Debugf(format string, args ...any) {}
func (l *noopLogger) Infof(format string, args ...any)  {}
func (l *noopLogger) Warnf(format string, args ...any)  {}
func (l *noopLogger) Errorf(format string, args ...any) {}
func (l *noopLogger) With(fields map[string]any) Logger { return l }

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return &noopLogger{}
}

func (l *defaultLogger) enabled(level LogLevel) bool {
	return level <= l.level
}

func (l *defaultLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make(map[string]any, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &defaultLogger{
		out:        l.out,
		level:      l.level,
		formatter:  l.formatter,
		baseFields: merged,
		mu:         l.mu,
	}
}

func (l *defaultLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *defaultLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *defaultLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *defaultLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

func (l *defaultLogger) logf(level LogLevel, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := l.formatter.format(time.Now(), level, msg, l.baseFields)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

// ----------------------------------------------------------------------------
// Helpers: value summaries, truncation
// ----------------------------------------------------------------------------

// valueSummary returns a compact one-line rendering of v. Tuples and
// description sets are truncated to maxItems entries; nested values below
// maxDepth are elided.
func valueSummary(v *Value, maxItems, maxDepth int) string {
	if v.IsBottom() {
		return "Bottom"
	}
	var s string
	switch v.Kind {
	case KindTuple:
		if maxDepth <= 0 {
			s = fmt.Sprintf("Tuple[len=%d]", len(v.Items))
			break
		}
		items := make([]string, len(v.Items))
		for i, it := range v.Items {
			items[i] = valueSummary(it, maxItems, maxDepth-1)
		}
		s = "Tuple(" + truncateList(items, maxItems) + ")"
	case KindList:
		s = "List[...]"
		if maxDepth > 0 {
			s = "List[" + valueSummary(v.List.Item(), maxItems, maxDepth-1) + "]"
		}
	case KindDict:
		s = "Dict[...]"
		if maxDepth > 0 {
			s = "Dict[" + valueSummary(v.Dict.Key(), maxItems, maxDepth-1) + ":" +
				valueSummary(v.Dict.Value(), maxItems, maxDepth-1) + "]"
		}
	case KindCallable:
		names := make([]string, len(v.Descs))
		for i, d := range v.Descs {
			names[i] = d.Name()
		}
		s = "Callable{" + truncateList(names, maxItems) + "}"
	default:
		return v.String()
	}
	if v.Nullable {
		s += "?"
	}
	return s
}

// truncateList joins items with "," and appends +N if truncated.
func truncateList(items []string, max int) string {
	if max <= 0 || len(items) <= max {
		return strings.Join(items, ",")
	}
	return strings.Join(items[:max], ",") + fmt.Sprintf(",+%d", len(items)-max)
}
