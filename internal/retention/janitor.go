// Package retention implements data retention for the incident ledger
// and approvals queue. Closed incidents and resolved approvals are kept
// for a bounded window, then archived and/or purged by a background
// janitor.
//
// Open incidents and waiting approvals are never touched, regardless of
// age. Archive failures are fail-safe: records are NOT deleted if
// archiving fails.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/internal/store"
	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// DefaultIncidentRetentionDays is how long closed incidents stay in the
// hot store.
const DefaultIncidentRetentionDays = 90

// DefaultApprovalRetentionDays is how long resolved approvals stay in
// the hot store.
const DefaultApprovalRetentionDays = 30

// sweepBatchSize caps how many records a single cycle considers per
// record kind.
const sweepBatchSize = 1000

// Archiver writes expired records to a durable cold store before they
// are purged.
type Archiver interface {
	Kind() string
	ArchiveIncidents(ctx context.Context, tenantID string, incidents []models.Incident) (string, error)
	ArchiveApprovals(ctx context.Context, tenantID string, approvals []models.ApprovalRecord) (string, error)
	HealthCheck(ctx context.Context) error
}

// CycleStats tracks what happened in a single retention cycle.
type CycleStats struct {
	IncidentsArchived int
	IncidentsPurged   int
	ApprovalsArchived int
	ApprovalsPurged   int
	Errors            []error
}

// Janitor periodically archives and purges expired records.
type Janitor struct {
	store        store.Store
	interval     time.Duration
	incidentDays int
	approvalDays int

	// archiver is optional. Without one the janitor purges directly.
	archiver Archiver

	// now is swappable for tests.
	now func() time.Time
}

// NewJanitor creates a retention janitor that runs on the given interval.
func NewJanitor(s store.Store, interval time.Duration, incidentDays, approvalDays int) *Janitor {
	if interval < time.Minute {
		interval = time.Hour
	}
	if incidentDays <= 0 {
		incidentDays = DefaultIncidentRetentionDays
	}
	if approvalDays <= 0 {
		approvalDays = DefaultApprovalRetentionDays
	}
	return &Janitor{
		store:        s,
		interval:     interval,
		incidentDays: incidentDays,
		approvalDays: approvalDays,
		now:          time.Now,
	}
}

// SetArchiver installs an archive backend. Must be called before Start.
func (j *Janitor) SetArchiver(a Archiver) {
	j.archiver = a
	log.Info().Str("kind", a.Kind()).Msg("Archive driver registered")
}

// Start runs the janitor until ctx is canceled.
func (j *Janitor) Start(ctx context.Context) {
	archiverKind := "none"
	if j.archiver != nil {
		archiverKind = j.archiver.Kind()
	}
	log.Info().
		Dur("interval", j.interval).
		Int("incident_days", j.incidentDays).
		Int("approval_days", j.approvalDays).
		Str("archiver", archiverKind).
		Msg("Retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle performs one retention sweep.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	start := j.now()
	var stats CycleStats

	j.sweepIncidents(ctx, &stats)
	j.sweepApprovals(ctx, &stats)

	for _, e := range stats.Errors {
		log.Warn().Err(e).Msg("Retention cycle error")
	}

	if stats.IncidentsPurged > 0 || stats.ApprovalsPurged > 0 || stats.IncidentsArchived > 0 || stats.ApprovalsArchived > 0 {
		log.Info().
			Int("incidents_archived", stats.IncidentsArchived).
			Int("incidents_purged", stats.IncidentsPurged).
			Int("approvals_archived", stats.ApprovalsArchived).
			Int("approvals_purged", stats.ApprovalsPurged).
			Dur("elapsed", time.Since(start)).
			Msg("Retention cycle complete")
	}
	return stats
}

// sweepIncidents expires closed incidents. Only the closed status is
// eligible; an incident still in triage stays however stale it looks.
func (j *Janitor) sweepIncidents(ctx context.Context, stats *CycleStats) {
	closed, err := j.store.ListIncidents(ctx, models.IncidentFilter{
		Status: models.IncidentClosed,
		Limit:  sweepBatchSize,
	})
	if err != nil {
		stats.Errors = append(stats.Errors, err)
		return
	}

	cutoff := j.now().AddDate(0, 0, -j.incidentDays)
	expired := make(map[string][]models.Incident)
	for _, inc := range closed {
		if inc.UpdatedAt.Before(cutoff) {
			expired[inc.TenantID] = append(expired[inc.TenantID], inc)
		}
	}

	for tenantID, batch := range expired {
		if j.archiver != nil {
			uri, err := j.archiver.ArchiveIncidents(ctx, tenantID, batch)
			if err != nil {
				log.Warn().Err(err).
					Str("tenant_id", tenantID).
					Int("batch_size", len(batch)).
					Msg("Failed to archive incidents — skipping purge (fail-safe)")
				stats.Errors = append(stats.Errors, err)
				continue
			}
			stats.IncidentsArchived += len(batch)
			log.Debug().Str("uri", uri).Int("count", len(batch)).Msg("Incidents archived")
		}
		for _, inc := range batch {
			if err := j.store.DeleteIncident(ctx, inc.ID); err != nil {
				stats.Errors = append(stats.Errors, err)
				continue
			}
			stats.IncidentsPurged++
		}
	}
}

// sweepApprovals expires approvals that have been resolved either way.
func (j *Janitor) sweepApprovals(ctx context.Context, stats *CycleStats) {
	cutoff := j.now().AddDate(0, 0, -j.approvalDays)
	expired := make(map[string][]models.ApprovalRecord)

	for _, status := range []models.ApprovalStatus{models.ApprovalApproved, models.ApprovalRejected} {
		resolved, err := j.store.ListApprovals(ctx, "", status, sweepBatchSize)
		if err != nil {
			stats.Errors = append(stats.Errors, err)
			return
		}
		for _, rec := range resolved {
			if rec.ResolvedAt != nil && rec.ResolvedAt.Before(cutoff) {
				expired[rec.TenantID] = append(expired[rec.TenantID], rec)
			}
		}
	}

	for tenantID, batch := range expired {
		if j.archiver != nil {
			uri, err := j.archiver.ArchiveApprovals(ctx, tenantID, batch)
			if err != nil {
				log.Warn().Err(err).
					Str("tenant_id", tenantID).
					Int("batch_size", len(batch)).
					Msg("Failed to archive approvals — skipping purge (fail-safe)")
				stats.Errors = append(stats.Errors, err)
				continue
			}
			stats.ApprovalsArchived += len(batch)
			log.Debug().Str("uri", uri).Int("count", len(batch)).Msg("Approvals archived")
		}
		for _, rec := range batch {
			if err := j.store.DeleteApproval(ctx, rec.ID); err != nil {
				stats.Errors = append(stats.Errors, err)
				continue
			}
			stats.ApprovalsPurged++
		}
	}
}
