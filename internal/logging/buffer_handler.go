package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// LogCallback receives every record written to the ring buffer.
type LogCallback func(entry LogEntry)

// BufferHandler writes records into the package ring buffer and hands them
// to the registered callback. Both are looked up per record, so handlers
// built before Initialize keep working.
type BufferHandler struct {
	level  slog.Leveler
	module string
	attrs  []slog.Attr
	groups []string
}

// NewBufferHandler creates a buffer handler filtering at level.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		flattenAttr(attrs, nil, a)
	}

	module := h.module
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" && len(h.groups) == 0 {
			module = a.Value.String()
			return true
		}
		flattenAttr(attrs, h.groups, a)
		return true
	})
	if module == "" {
		module = "main"
	}
	if len(attrs) == 0 {
		attrs = nil
	}

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelName(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	}

	GetBuffer().Write(entry)
	if fn := currentCallback(); fn != nil {
		fn(entry)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == "module" && len(h.groups) == 0 {
			clone.module = a.Value.String()
			continue
		}
		if len(h.groups) > 0 {
			a = slog.Attr{Key: strings.Join(h.groups, ".") + "." + a.Key, Value: a.Value}
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// flattenAttr stores a into attrs with dotted keys for groups.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		nested := append(append([]string(nil), groups...), a.Key)
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, nested, ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
