package logger

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is a log line kept by a Buffer.
type Entry struct {
	ID      int          `json:"id"`
	Message string       `json:"message"`
	Time    time.Time    `json:"time"`
	Level   logrus.Level `json:"level"`
}

// Buffer is a logrus hook keeping the most recent entries in a ring, so a running sweep can
// report its own log over HTTP.
type Buffer struct {
	lock  sync.RWMutex
	ring  []*Entry
	total int
}

// NewBuffer creates a Buffer holding up to capacity entries.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{ring: make([]*Entry, capacity)}
}

func (b *Buffer) write(e *Entry) {
	b.lock.Lock()
	defer b.lock.Unlock()
	e.ID = b.total
	b.ring[b.total%len(b.ring)] = e
	b.total++
}

// Len returns the total number of entries ever written.
func (b *Buffer) Len() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.total
}

// Since returns up to limit retained entries with an ID of at least after, oldest first. A
// negative limit returns everything retained.
func (b *Buffer) Since(after, limit int) []*Entry {
	b.lock.RLock()
	defer b.lock.RUnlock()

	oldest := b.total - len(b.ring)
	if oldest < 0 {
		oldest = 0
	}
	if after < oldest {
		after = oldest
	}
	n := b.total - after
	if n <= 0 {
		return nil
	}
	if limit >= 0 && n > limit {
		n = limit
	}
	out := make([]*Entry, 0, n)
	for id := after; id < after+n; id++ {
		out = append(out, b.ring[id%len(b.ring)])
	}
	return out
}

// Fire implements the logrus.Hook interface.
func (b *Buffer) Fire(entry *logrus.Entry) error {
	b.write(&Entry{
		Message: messageAndData(entry),
		Time:    entry.Time,
		Level:   entry.Level,
	})
	return nil
}

// Levels implements the logrus.Hook interface.
func (b *Buffer) Levels() []logrus.Level {
	return logrus.AllLevels
}

func messageAndData(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return entry.Message
	}

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, fmt.Sprintf("%s=%q", key, fmt.Sprintf("%v", entry.Data[key])))
	}
	return entry.Message + "  " + strings.Join(fields, " ")
}
