package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// PostgresStore is the pgx-backed Store implementation. History fields
// (triggers, notes, actions log) are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and runs the idempotent DDL
// migration.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("postgres store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS dh_incidents (
			id          TEXT PRIMARY KEY,
			request_id  TEXT NOT NULL DEFAULT '',
			session_key TEXT NOT NULL DEFAULT '',
			tenant_id   TEXT NOT NULL DEFAULT '',
			actor_id    TEXT NOT NULL DEFAULT '',
			severity    TEXT NOT NULL,
			status      TEXT NOT NULL,
			triggers    JSONB NOT NULL DEFAULT '[]',
			notes       JSONB NOT NULL DEFAULT '[]',
			actions_log JSONB NOT NULL DEFAULT '[]',
			outcome     TEXT NOT NULL DEFAULT '',
			follow_up   TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_dh_incidents_tenant ON dh_incidents (tenant_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_dh_incidents_status ON dh_incidents (status);

		CREATE TABLE IF NOT EXISTS dh_approvals (
			id           TEXT PRIMARY KEY,
			tenant_id    TEXT NOT NULL DEFAULT '',
			request_id   TEXT NOT NULL DEFAULT '',
			kind         TEXT NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at  TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_dh_approvals_tenant ON dh_approvals (tenant_id, requested_at DESC);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ── Incidents ───────────────────────────────────────────────

func (s *PostgresStore) CreateIncident(ctx context.Context, inc *models.Incident) error {
	triggers, notes, actions, err := marshalHistory(inc)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO dh_incidents
			(id, request_id, session_key, tenant_id, actor_id, severity, status,
			 triggers, notes, actions_log, outcome, follow_up, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		inc.ID, inc.RequestID, inc.SessionKey, inc.TenantID, inc.ActorID,
		inc.Severity, inc.Status, triggers, notes, actions,
		inc.Outcome, inc.FollowUp, inc.CreatedAt, inc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, request_id, session_key, tenant_id, actor_id, severity, status,
		       triggers, notes, actions_log, outcome, follow_up, created_at, updated_at
		FROM dh_incidents WHERE id = $1`, id)
	inc, err := scanIncident(row)
	if err == pgx.ErrNoRows {
		return nil, &ErrNotFound{Entity: "incident", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	return inc, nil
}

func (s *PostgresStore) UpdateIncident(ctx context.Context, inc *models.Incident) error {
	triggers, notes, actions, err := marshalHistory(inc)
	if err != nil {
		return err
	}
	inc.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		UPDATE dh_incidents SET
			severity = $2, status = $3, triggers = $4, notes = $5,
			actions_log = $6, outcome = $7, follow_up = $8, updated_at = $9
		WHERE id = $1`,
		inc.ID, inc.Severity, inc.Status, triggers, notes, actions,
		inc.Outcome, inc.FollowUp, inc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "incident", Key: inc.ID}
	}
	return nil
}

func (s *PostgresStore) ListIncidents(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	query := `
		SELECT id, request_id, session_key, tenant_id, actor_id, severity, status,
		       triggers, notes, actions_log, outcome, follow_up, created_at, updated_at
		FROM dh_incidents WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", idx)
		args = append(args, filter.TenantID)
		idx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", idx)
		args = append(args, filter.Severity)
		idx++
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteIncident(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dh_incidents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete incident: %w", err)
	}
	return nil
}

// ── Approvals ───────────────────────────────────────────────

func (s *PostgresStore) CreateApproval(ctx context.Context, rec *models.ApprovalRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dh_approvals (id, tenant_id, request_id, kind, reason, status, requested_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.TenantID, rec.RequestID, rec.Kind, rec.Reason, rec.Status, rec.RequestedAt, rec.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApproval(ctx context.Context, id string) (*models.ApprovalRecord, error) {
	var rec models.ApprovalRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, request_id, kind, reason, status, requested_at, resolved_at
		FROM dh_approvals WHERE id = $1`, id).
		Scan(&rec.ID, &rec.TenantID, &rec.RequestID, &rec.Kind, &rec.Reason, &rec.Status, &rec.RequestedAt, &rec.ResolvedAt)
	if err == pgx.ErrNoRows {
		return nil, &ErrNotFound{Entity: "approval", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get approval: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) UpdateApproval(ctx context.Context, rec *models.ApprovalRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dh_approvals SET status = $2, resolved_at = $3 WHERE id = $1`,
		rec.ID, rec.Status, rec.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "approval", Key: rec.ID}
	}
	return nil
}

func (s *PostgresStore) ListApprovals(ctx context.Context, tenantID string, status models.ApprovalStatus, limit int) ([]models.ApprovalRecord, error) {
	query := `
		SELECT id, tenant_id, request_id, kind, reason, status, requested_at, resolved_at
		FROM dh_approvals WHERE 1=1`
	args := []interface{}{}
	idx := 1
	if tenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", idx)
		args = append(args, tenantID)
		idx++
	}
	if status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, status)
		idx++
	}
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY requested_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []models.ApprovalRecord
	for rows.Next() {
		var rec models.ApprovalRecord
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.RequestID, &rec.Kind, &rec.Reason, &rec.Status, &rec.RequestedAt, &rec.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteApproval(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dh_approvals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete approval: %w", err)
	}
	return nil
}

// ── Helpers ─────────────────────────────────────────────────

func marshalHistory(inc *models.Incident) (triggers, notes, actions []byte, err error) {
	if triggers, err = json.Marshal(orEmpty(inc.Triggers)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal triggers: %w", err)
	}
	if notes, err = json.Marshal(orEmptyEntries(inc.Notes)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal notes: %w", err)
	}
	if actions, err = json.Marshal(orEmptyEntries(inc.ActionsLog)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal actions: %w", err)
	}
	return triggers, notes, actions, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyEntries(s []models.IncidentEntry) []models.IncidentEntry {
	if s == nil {
		return []models.IncidentEntry{}
	}
	return s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIncident(row rowScanner) (*models.Incident, error) {
	var inc models.Incident
	var triggers, notes, actions []byte
	if err := row.Scan(&inc.ID, &inc.RequestID, &inc.SessionKey, &inc.TenantID, &inc.ActorID,
		&inc.Severity, &inc.Status, &triggers, &notes, &actions,
		&inc.Outcome, &inc.FollowUp, &inc.CreatedAt, &inc.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(triggers, &inc.Triggers); err != nil {
		return nil, fmt.Errorf("unmarshal triggers: %w", err)
	}
	if err := json.Unmarshal(notes, &inc.Notes); err != nil {
		return nil, fmt.Errorf("unmarshal notes: %w", err)
	}
	if err := json.Unmarshal(actions, &inc.ActionsLog); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	return &inc, nil
}
