package tui

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap/zapcore"
)

const (
	levelInfo = "info"
	levelWarn = "warn"
	levelErr  = "err"
)

// PanelSink forwards log entries to a running program. Entries written
// before a program is attached are dropped.
type PanelSink struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// Attach routes entries to p.
func (s *PanelSink) Attach(p *tea.Program) {
	s.mu.Lock()
	s.send = p.Send
	s.mu.Unlock()
}

// Detach stops forwarding.
func (s *PanelSink) Detach() {
	s.mu.Lock()
	s.send = nil
	s.mu.Unlock()
}

func (s *PanelSink) emit(msg LogMsg) {
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send != nil {
		send(msg)
	}
}

// NewPanelCore returns a zapcore.Core that mirrors entries into the log panel.
// Must not be used from inside Update: Send blocks until the program reads it.
func NewPanelCore(sink *PanelSink, enab zapcore.LevelEnabler) zapcore.Core {
	return &panelCore{LevelEnabler: enab, sink: sink}
}

type panelCore struct {
	zapcore.LevelEnabler
	sink   *PanelSink
	fields []zapcore.Field
}

func (c *panelCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *panelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *panelCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.sink.emit(LogMsg{
		At:    ent.Time,
		Level: panelLevel(ent.Level),
		Text:  formatEntry(ent.Message, append(append([]zapcore.Field(nil), c.fields...), fields...)),
	})
	return nil
}

func (c *panelCore) Sync() error { return nil }

func panelLevel(l zapcore.Level) string {
	switch {
	case l >= zapcore.ErrorLevel:
		return levelErr
	case l == zapcore.WarnLevel:
		return levelWarn
	default:
		return levelInfo
	}
}

// formatEntry renders "message key=value ..." with keys sorted.
func formatEntry(msg string, fields []zapcore.Field) string {
	if len(fields) == 0 {
		return msg
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	return b.String()
}
