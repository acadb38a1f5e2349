package store

import (
	"context"
	"fmt"
	"sync"

	apierrors "vidgate/internal/errors"
	"vidgate/pkg/contracts/domain"
)

// Memory is an in-process VersionedStore.
type Memory struct {
	mu      sync.Mutex
	records []domain.LicenseRecord
}

// NewMemory returns a memory store seeded with records.
func NewMemory(records ...domain.LicenseRecord) *Memory {
	m := &Memory{}
	for _, rec := range records {
		m.records = append(m.records, rec.Clone())
	}
	return m
}

// Load returns a copy of every record.
func (m *Memory) Load(_ context.Context) (Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Collection{Records: m.records}.Clone(), nil
}

// Save replaces every record.
func (m *Memory) Save(_ context.Context, c Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = c.Clone().Records
	return nil
}

// UpdateIfUnchanged implements VersionedStore.
func (m *Memory) UpdateIfUnchanged(_ context.Context, key string, expectedVersion uint64, rec domain.LicenseRecord) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := Collection{Records: m.records}
	idx, ok := c.Find(key)
	if !ok {
		return 0, fmt.Errorf("update %s: %w", key, apierrors.ErrInvalidLicense)
	}
	if current := m.records[idx].Version; current != expectedVersion {
		return current, fmt.Errorf("update %s: stored version %d, expected %d: %w", key, current, expectedVersion, apierrors.ErrConflict)
	}

	next := rec.Clone()
	next.Version = expectedVersion + 1
	m.records[idx] = next
	return next.Version, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
