package shardstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryBackend keeps entries in process memory. It backs the "memory"
// cache mode and tests; nothing survives the process.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[Table]map[string]Entry

	// failPuts makes every Put fail, simulating a full or disabled store.
	failPuts error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tables: map[Table]map[string]Entry{
			TableIndex: {},
			TableYears: {},
		},
	}
}

// FailPuts makes subsequent puts return err; nil restores normal behaviour.
func (m *MemoryBackend) FailPuts(err error) {
	m.mu.Lock()
	m.failPuts = err
	m.mu.Unlock()
}

func (m *MemoryBackend) Get(_ context.Context, table Table, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, ok := m.tables[table]
	if !ok {
		return Entry{}, false, fmt.Errorf("unknown table %q", table)
	}
	entry, ok := rows[key]
	if !ok {
		return Entry{}, false, nil
	}
	entry.Payload = slices.Clone(entry.Payload)
	return entry, true, nil
}

func (m *MemoryBackend) Put(_ context.Context, table Table, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failPuts != nil {
		return m.failPuts
	}
	rows, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	entry.Payload = slices.Clone(entry.Payload)
	rows[key] = entry
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for table := range m.tables {
		m.tables[table] = map[string]Entry{}
	}
	return nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
