package logging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func resetForTest(t *testing.T) {
	t.Helper()
	mu.Lock()
	config = Config{Level: "info", Format: "text"}
	initialized = false
	loggers = make(map[string]*slog.Logger)
	levels = make(map[string]*slog.LevelVar)
	ring = NewRingBuffer(defaultBufferSize)
	callback = nil
	mu.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetForTest(t)

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"server": "debug", "relay": "warn"},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"server", true, true, true},
		{"relay", false, false, true},
		{"hardware", false, true, true},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetForTest(t)

	early := GetLogger("server")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled before Initialize")
	}

	Initialize(Config{Level: "debug"})

	if !GetLogger("server").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after Initialize")
	}
}

func TestReconfigureKeepsLoggers(t *testing.T) {
	resetForTest(t)
	Initialize(Config{Level: "info"})

	logger := GetLogger("relay")
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should start disabled")
	}

	Reconfigure(Config{Level: "info", Modules: map[string]string{"relay": "debug"}})

	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("existing logger did not pick up the new level")
	}
	if got := Level("relay"); got != slog.LevelDebug {
		t.Errorf("Level(relay) = %v, want debug", got)
	}
	if got := Level("other"); got != slog.LevelInfo {
		t.Errorf("Level(other) = %v, want info", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{" error ", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRingBufferWraps(t *testing.T) {
	b := NewRingBuffer(3)
	if got := b.Tail(0); len(got) != 0 {
		t.Fatalf("empty buffer returned %d entries", len(got))
	}

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		b.Write(LogEntry{Message: msg})
	}

	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	got := b.Tail(0)
	want := []string{"c", "d", "e"}
	for i := range want {
		if got[i].Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i].Message, want[i])
		}
	}

	last := b.Tail(2)
	if len(last) != 2 || last[0].Message != "d" || last[1].Message != "e" {
		t.Errorf("Tail(2) = %+v", last)
	}
}

func TestBufferHandlerCapturesAttributes(t *testing.T) {
	resetForTest(t)

	var (
		cbMu    sync.Mutex
		entries []LogEntry
	)
	SetLogCallback(func(e LogEntry) {
		cbMu.Lock()
		entries = append(entries, e)
		cbMu.Unlock()
	})

	logger := slog.New(NewBufferHandler(slog.LevelInfo)).With("module", "server")
	logger.Debug("hidden")
	logger.WithGroup("req").Warn("Request failed",
		"status", 404,
		"error", errors.New("boom"),
		"took", 25*time.Millisecond,
	)

	buffered := GetBuffer().Tail(0)
	if len(buffered) != 1 {
		t.Fatalf("buffer holds %d entries, want 1", len(buffered))
	}
	e := buffered[0]
	if e.Module != "server" || e.Level != "warn" || e.Message != "Request failed" {
		t.Errorf("entry = %+v", e)
	}
	if e.Attributes["req.status"] != int64(404) {
		t.Errorf("req.status = %#v", e.Attributes["req.status"])
	}
	if e.Attributes["req.error"] != "boom" {
		t.Errorf("req.error = %#v", e.Attributes["req.error"])
	}
	if e.Attributes["req.took"] != "25ms" {
		t.Errorf("req.took = %#v", e.Attributes["req.took"])
	}

	cbMu.Lock()
	defer cbMu.Unlock()
	if len(entries) != 1 {
		t.Errorf("callback saw %d entries, want 1", len(entries))
	}
}

type recordingHandler struct {
	level   slog.Level
	records int
	err     error
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *recordingHandler) Handle(context.Context, slog.Record) error {
	h.records++
	return h.err
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandlerFansOut(t *testing.T) {
	failing := &recordingHandler{level: slog.LevelDebug, err: errors.New("down")}
	quiet := &recordingHandler{level: slog.LevelError}
	ok := &recordingHandler{level: slog.LevelInfo}

	m := NewMultiHandler(failing, quiet, ok)
	if !m.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("enabled should be true when any handler accepts")
	}

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := m.Handle(context.Background(), rec); err == nil {
		t.Error("expected joined error from failing handler")
	}
	if failing.records != 1 || ok.records != 1 || quiet.records != 0 {
		t.Errorf("records = %d/%d/%d, want 1/0/1", failing.records, quiet.records, ok.records)
	}
}

func TestJournalFieldNames(t *testing.T) {
	vars := map[string]string{}
	journalField(vars, []string{"http"}, slog.Int("status", 200))
	journalField(vars, nil, slog.String("remote-addr", "10.0.0.2"))
	journalField(vars, nil, slog.Group("relay", slog.Bool("enabled", true)))

	want := map[string]string{
		"HTTP_STATUS":   "200",
		"REMOTE_ADDR":   "10.0.0.2",
		"RELAY_ENABLED": "true",
	}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("%s = %q, want %q", k, vars[k], v)
		}
	}
}
