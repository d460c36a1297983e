// Package messages manages the pool of story replies and direct messages.
//
// The pool is stored as a plain text file with one message per line. A missing
// or empty file falls back to a built-in set of short replies.
package messages

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Fallback is returned by Pick when no messages are available.
const Fallback = "Nice! 😊"

// Defaults are used when no message file exists.
var Defaults = []string{
	"😍", "🔥", "❤️",
	"Круто!", "Класно!", "Супер!", "Гарно!", "Топ!",
	"Wow!", "Nice!", "Amazing!", "Perfect!", "Love it!", "Beautiful!",
	"Дуже цікаво!", "Топ контент!", "Красиво!",
	"💯", "🙌", "👏", "⭐", "💫", "✨",
}

// Pick returns a uniformly random message from msgs, or Fallback if msgs is empty.
func Pick(rnd *rand.Rand, msgs []string) string {
	if len(msgs) == 0 {
		return Fallback
	}
	return msgs[rnd.Intn(len(msgs))]
}

// Pool is a concurrency-safe message list optionally backed by a file.
type Pool struct {
	mu       sync.RWMutex
	path     string
	messages []string
}

// NewPool creates an in-memory pool. Blank and repeated messages are dropped.
func NewPool(msgs []string) *Pool {
	return &Pool{messages: clean(msgs)}
}

// Load reads the pool from path. A missing or empty file yields Defaults; the
// path is remembered so Add, Remove and Save write back to it.
func Load(path string) (*Pool, error) {
	p := &Pool{path: path}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		p.messages = clean(Defaults)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open messages file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}

	p.messages = clean(lines)
	if len(p.messages) == 0 {
		p.messages = clean(Defaults)
	}
	return p, nil
}

// All returns a copy of the messages.
func (p *Pool) All() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.messages))
	copy(out, p.messages)
	return out
}

// Len returns the number of messages.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.messages)
}

// Random returns a random message, or Fallback for an empty pool.
func (p *Pool) Random(rnd *rand.Rand) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Pick(rnd, p.messages)
}

// Add appends msg if it is not already present and persists the pool.
// It reports whether the pool changed.
func (p *Pool) Add(msg string) (bool, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.messages {
		if m == msg {
			return false, nil
		}
	}
	p.messages = append(p.messages, msg)
	return true, p.saveLocked()
}

// Remove deletes msg and persists the pool. It reports whether the pool changed.
func (p *Pool) Remove(msg string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, m := range p.messages {
		if m == msg {
			p.messages = append(p.messages[:i], p.messages[i+1:]...)
			return true, p.saveLocked()
		}
	}
	return false, nil
}

// Save writes the pool to its file. Pools without a path are not persisted.
func (p *Pool) Save() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.saveLocked()
}

func (p *Pool) saveLocked() error {
	if p.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create messages directory: %w", err)
	}
	data := strings.Join(p.messages, "\n")
	if data != "" {
		data += "\n"
	}
	if err := os.WriteFile(p.path, []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write messages file: %w", err)
	}
	return nil
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
