package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Event is one audit record, serialized as a single JSON object with at
// least an "event" field.
type Event map[string]any

// Logger appends structured events to a durable file, mirrors them to
// stdout, and fans them out to live subscribers. Write failures are reported
// on the stdout channel only; they never propagate to callers.
type Logger struct {
	out *slog.Logger

	fileMu sync.Mutex
	file   *os.File

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

// New opens the audit file in append mode. An empty path disables the file
// sink; stdout mirroring and fan-out still work.
func New(path string) (*Logger, error) {
	l := &Logger{
		out:  slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		subs: make(map[int]chan Event),
	}
	if strings.TrimSpace(path) != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open audit file: %w", err)
		}
		l.file = f
	}
	return l, nil
}

// Record logs one event with alternating key/value fields, slog style.
func (l *Logger) Record(event string, kv ...any) {
	e := Event{"event": event}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e[key] = kv[i+1]
	}

	l.out.Info(event, kv...)
	l.append(e)
	l.broadcast(e)
}

func (l *Logger) append(e Event) {
	if l.file == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		l.out.Error("audit_write_error", "error", err.Error())
		return
	}

	l.fileMu.Lock()
	_, err = l.file.Write(append(line, '\n'))
	l.fileMu.Unlock()
	if err != nil {
		l.out.Error("audit_write_error", "error", err.Error())
	}
}

func (l *Logger) broadcast(e Event) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			// Slow consumers miss events rather than stalling the request path.
		}
	}
}

// Subscribe registers a live event feed. The returned cancel func must be
// called when the consumer goes away.
func (l *Logger) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()

	cancel := func() {
		l.subMu.Lock()
		delete(l.subs, id)
		l.subMu.Unlock()
	}
	return ch, cancel
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
