package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// MemoryStore keeps records in process memory. Records are held in their
// JSON form so callers never share nested values with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string][]byte),
	}
}

func (m *MemoryStore) Get(_ context.Context, table, id string) (models.Fields, bool, error) {
	m.mu.RLock()
	raw, ok := m.tables[table][id]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	var record models.Fields
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("decode %s/%s: %w", table, id, err)
	}
	return record, true, nil
}

func (m *MemoryStore) Put(_ context.Context, table, id string, record models.Fields) error {
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", table, id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		rows = make(map[string][]byte)
		m.tables[table] = rows
	}
	rows[id] = raw
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables[table], id)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of records in table
func (m *MemoryStore) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}
