package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Subho98799/nagar/internal/models"
)

// MemoryRepository keeps reports in process memory. Used for local runs and
// tests; it honours the same versioning contract as the SQL stores.
type MemoryRepository struct {
	mu      sync.RWMutex
	reports map[string]*models.Report
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{reports: make(map[string]*models.Report)}
}

func (m *MemoryRepository) Create(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reports[r.ID]; exists {
		return fmt.Errorf("report %s already exists", r.ID)
	}
	r.Version = 1
	m.reports[r.ID] = r.Clone()
	return nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.reports[id]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	return r.Clone(), nil
}

func (m *MemoryRepository) Update(_ context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.reports[r.ID]
	if !ok {
		return models.ErrReportNotFound
	}
	if stored.Version != r.Version {
		return models.ErrConflict
	}
	r.Version++
	m.reports[r.ID] = r.Clone()
	return nil
}

func (m *MemoryRepository) List(_ context.Context, f Filter) ([]*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Report
	for _, r := range m.reports {
		if f.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
