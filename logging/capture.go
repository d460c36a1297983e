package logging

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the records kept per account.
const DefaultMaxEntries = 2000

// Entry is one captured log record.
type Entry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Collector stores captured records per account. When an account exceeds the
// limit the oldest records are dropped.
type Collector struct {
	mu    sync.RWMutex
	max   int
	byKey map[string][]Entry
}

// NewCollector creates a collector keeping at most maxEntries per account.
// Zero means DefaultMaxEntries.
func NewCollector(maxEntries int) *Collector {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Collector{max: maxEntries, byKey: make(map[string][]Entry)}
}

func (c *Collector) add(account string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.byKey[account], e)
	if over := len(entries) - c.max; over > 0 {
		entries = append(entries[:0:0], entries[over:]...)
	}
	c.byKey[account] = entries
}

// Logs returns a copy of the records captured for account.
func (c *Collector) Logs(account string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries, ok := c.byKey[account]
	if !ok {
		return nil
	}
	return append([]Entry(nil), entries...)
}

// All returns a copy of every captured record keyed by account.
func (c *Collector) All() map[string][]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]Entry, len(c.byKey))
	for k, v := range c.byKey {
		out[k] = append([]Entry(nil), v...)
	}
	return out
}

// Reset drops all captured records.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey = make(map[string][]Entry)
}

// ForAccount returns a logger that writes through base and also captures
// every record, at any level, under account. The returned logger carries the
// account attribute.
func (c *Collector) ForAccount(base *slog.Logger, account string) *slog.Logger {
	h := &captureHandler{next: base.Handler(), collector: c, account: account}
	return slog.New(h).With("account", account)
}

// captureHandler tees records into a Collector.
type captureHandler struct {
	next      slog.Handler
	collector *Collector
	account   string
	attrs     []slog.Attr
	group     string
}

// Enabled reports true for every level so debug records are captured even
// when the output handler filters them. Handle re-checks before forwarding.
func (h *captureHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	e := Entry{
		Time:       r.Time,
		Level:      r.Level.String(),
		Message:    r.Message,
		Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	for _, a := range h.attrs {
		e.Attributes[a.Key] = resolve(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		e.Attributes[key] = resolve(a.Value)
		return true
	})
	h.collector.add(h.account, e)

	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	if h.group != "" {
		name = h.group + "." + name
	}
	clone.group = name
	return &clone
}

// resolve converts a slog.Value into something encoding/json handles.
func resolve(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindGroup:
		group := make(map[string]any)
		for _, a := range v.Group() {
			group[a.Key] = resolve(a.Value)
		}
		return group
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	return v.Any()
}
