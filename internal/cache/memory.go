package cache

import (
	"context"
	"sync"

	"github.com/lehigh-university-libraries/describer/internal/models"
)

// Memory is a process-local Store
type Memory struct {
	entries map[string]models.ImageAnalysis
	mu      sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]models.ImageAnalysis),
	}
}

func (m *Memory) Get(ctx context.Context, key string) (models.ImageAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	analysis, exists := m.entries[key]
	if !exists {
		return models.ImageAnalysis{}, ErrCacheMiss
	}
	return analysis, nil
}

func (m *Memory) Set(ctx context.Context, key string, analysis models.ImageAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = analysis
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	return nil
}

func (m *Memory) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *Memory) Close() error {
	return nil
}
