// Package store provides persistence for security incidents and approval
// records. Two implementations ship: an in-memory store (zero config,
// used by default and in tests) and a PostgreSQL store backed by pgx.
package store

import (
	"context"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// Store is the persistence interface for the security subsystem.
// Handler and gateway code depend on this interface only, so swapping
// memory for PostgreSQL is a wiring change.
type Store interface {
	IncidentStore
	ApprovalStore

	// Ping checks the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Incident Store ──────────────────────────────────────────

type IncidentStore interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, id string) (*models.Incident, error)

	// UpdateIncident persists the full record. History fields (notes,
	// actions log) are append-only by ledger convention; the store saves
	// whatever it is given.
	UpdateIncident(ctx context.Context, incident *models.Incident) error

	ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error)

	// DeleteIncident removes a record permanently. Deleting a missing
	// record is not an error; the retention janitor re-runs sweeps.
	DeleteIncident(ctx context.Context, id string) error
}

// ── Approval Store ──────────────────────────────────────────

type ApprovalStore interface {
	CreateApproval(ctx context.Context, record *models.ApprovalRecord) error
	GetApproval(ctx context.Context, id string) (*models.ApprovalRecord, error)
	UpdateApproval(ctx context.Context, record *models.ApprovalRecord) error
	ListApprovals(ctx context.Context, tenantID string, status models.ApprovalStatus, limit int) ([]models.ApprovalRecord, error)

	// DeleteApproval removes a record permanently. Idempotent.
	DeleteApproval(ctx context.Context, id string) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested record does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}
