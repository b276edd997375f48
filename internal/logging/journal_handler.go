package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

const syslogIdentifier = "relaynode"

// JournalHandler sends records to the systemd journal as structured fields.
type JournalHandler struct {
	level  slog.Leveler
	fields map[string]string
	groups []string
}

// NewJournalHandler creates a journal handler filtering at level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level, fields: map[string]string{}}
}

// JournalAvailable reports whether journald's socket is reachable.
func JournalAvailable() bool {
	return journal.Enabled()
}

// Enabled implements slog.Handler.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	vars := make(map[string]string, len(h.fields)+r.NumAttrs()+1)
	for k, v := range h.fields {
		vars[k] = v
	}
	vars["SYSLOG_IDENTIFIER"] = syslogIdentifier

	r.Attrs(func(a slog.Attr) bool {
		journalField(vars, h.groups, a)
		return true
	})

	if err := journal.Send(r.Message, priority(r.Level), vars); err != nil {
		return fmt.Errorf("journal send: %w", err)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(map[string]string, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		fields[k] = v
	}
	for _, a := range attrs {
		journalField(fields, h.groups, a)
	}
	return &JournalHandler{level: h.level, fields: fields, groups: h.groups}
}

// WithGroup implements slog.Handler.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &JournalHandler{level: h.level, fields: h.fields, groups: groups}
}

func priority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// journalField stores a under an upper-case journal field name. Journal
// field names only allow A-Z, 0-9 and underscore.
func journalField(vars map[string]string, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	name := a.Key
	if len(groups) > 0 {
		name = strings.Join(groups, "_") + "_" + name
	}

	if a.Value.Kind() == slog.KindGroup {
		nested := append(append([]string(nil), groups...), a.Key)
		for _, ga := range a.Value.Group() {
			journalField(vars, nested, ga)
		}
		return
	}

	name = fieldName(name)
	if name == "" {
		return
	}

	switch a.Value.Kind() {
	case slog.KindInt64:
		vars[name] = strconv.FormatInt(a.Value.Int64(), 10)
	case slog.KindUint64:
		vars[name] = strconv.FormatUint(a.Value.Uint64(), 10)
	case slog.KindBool:
		vars[name] = strconv.FormatBool(a.Value.Bool())
	case slog.KindDuration:
		vars[name] = a.Value.Duration().String()
	case slog.KindTime:
		vars[name] = a.Value.Time().Format(time.RFC3339Nano)
	default:
		vars[name] = a.Value.String()
	}
}

func fieldName(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.TrimLeft(b.String(), "_")
}
