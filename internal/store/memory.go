package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// MemoryStore is the in-memory Store implementation. It is the default
// for local development and tests. Records do not survive restarts.
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]models.Incident
	approvals map[string]models.ApprovalRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		incidents: make(map[string]models.Incident),
		approvals: make(map[string]models.ApprovalRecord),
	}
}

// Ping always succeeds for the memory store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// ── Incidents ───────────────────────────────────────────────

func (s *MemoryStore) CreateIncident(ctx context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

func (s *MemoryStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "incident", Key: id}
	}
	out := cloneIncident(&inc)
	return &out, nil
}

func (s *MemoryStore) UpdateIncident(ctx context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.incidents[incident.ID]; !ok {
		return &ErrNotFound{Entity: "incident", Key: incident.ID}
	}
	incident.UpdatedAt = time.Now().UTC()
	s.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

func (s *MemoryStore) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Incident, 0)
	for _, inc := range s.incidents {
		if filter.TenantID != "" && inc.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && inc.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && inc.Severity != filter.Severity {
			continue
		}
		out = append(out, cloneIncident(&inc))
	}
	// Newest first
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteIncident(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.incidents, id)
	return nil
}

// ── Approvals ───────────────────────────────────────────────

func (s *MemoryStore) CreateApproval(ctx context.Context, record *models.ApprovalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[record.ID] = *record
	return nil
}

func (s *MemoryStore) GetApproval(ctx context.Context, id string) (*models.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.approvals[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "approval", Key: id}
	}
	out := rec
	return &out, nil
}

func (s *MemoryStore) UpdateApproval(ctx context.Context, record *models.ApprovalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.approvals[record.ID]; !ok {
		return &ErrNotFound{Entity: "approval", Key: record.ID}
	}
	s.approvals[record.ID] = *record
	return nil
}

func (s *MemoryStore) ListApprovals(ctx context.Context, tenantID string, status models.ApprovalStatus, limit int) ([]models.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ApprovalRecord, 0)
	for _, rec := range s.approvals {
		if tenantID != "" && rec.TenantID != tenantID {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) DeleteApproval(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.approvals, id)
	return nil
}

// cloneIncident deep-copies the slice fields so callers cannot mutate
// stored history through a returned record.
func cloneIncident(in *models.Incident) models.Incident {
	out := *in
	out.Triggers = append([]string(nil), in.Triggers...)
	out.Notes = append([]models.IncidentEntry(nil), in.Notes...)
	out.ActionsLog = append([]models.IncidentEntry(nil), in.ActionsLog...)
	return out
}
