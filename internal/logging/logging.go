package logging

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Logger writes one JSON object per line. Every entry carries ts, level and,
// when set, the component name. Entries without an explicit level are
// classified from their "status" field.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	loc       *time.Location
	component string
}

// New creates a Logger writing to w, with timestamps rendered in loc.
func New(w io.Writer, loc *time.Location) *Logger {
	if w == nil {
		w = os.Stdout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{mu: &sync.Mutex{}, out: w, loc: loc}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, time.UTC)
}

// With returns a copy of l tagged with component. The copy shares l's writer.
func (l *Logger) With(component string) *Logger {
	cp := *l
	cp.component = component
	return &cp
}

// Info logs event at info level.
func (l *Logger) Info(event string, fields map[string]any) {
	l.write("info", event, nil, fields)
}

// Warn logs event at warn level.
func (l *Logger) Warn(event string, err error, fields map[string]any) {
	l.write("warn", event, err, fields)
}

// Error logs event at error level with err's message under "error_message".
func (l *Logger) Error(event string, err error, fields map[string]any) {
	l.write("error", event, err, fields)
}

// Log writes data as-is after filling in ts, component and level.
func (l *Logger) Log(data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["ts"] = time.Now().In(l.loc).Format(time.RFC3339Nano)
	if _, ok := data["component"]; !ok && l.component != "" {
		data["component"] = l.component
	}
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal log entry: %v", err)
		return
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(b)
}

func (l *Logger) write(level, event string, err error, fields map[string]any) {
	data := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		data[k] = v
	}
	data["level"] = level
	data["event"] = event
	if err != nil {
		data["error_message"] = err.Error()
	}
	l.Log(data)
}
