package retention

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dinehall/dinehall/gateway/pkg/models"
)

// LocalFileArchiver writes expired records as JSONL files to a local
// directory. This is the default archive driver for development and
// single-node deployments.
//
// Directory structure:
//
//	{basePath}/{tenant}/incidents/2026-02-20T15-04-05Z.jsonl[.gz]
//	{basePath}/{tenant}/approvals/2026-02-20T15-04-05Z.jsonl[.gz]
type LocalFileArchiver struct {
	basePath string
	compress bool
}

// NewLocalFileArchiver creates a file-based archiver. If basePath is
// empty, it defaults to "~/.dinehall/archive".
func NewLocalFileArchiver(basePath string, compress bool) *LocalFileArchiver {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			basePath = "/tmp/dinehall/archive"
		} else {
			basePath = filepath.Join(home, ".dinehall", "archive")
		}
	}
	return &LocalFileArchiver{basePath: basePath, compress: compress}
}

func (a *LocalFileArchiver) Kind() string { return "local" }

func (a *LocalFileArchiver) ArchiveIncidents(_ context.Context, tenantID string, incidents []models.Incident) (string, error) {
	records := make([]interface{}, len(incidents))
	for i, inc := range incidents {
		records[i] = inc
	}
	return a.writeBatch(tenantID, "incidents", records)
}

func (a *LocalFileArchiver) ArchiveApprovals(_ context.Context, tenantID string, approvals []models.ApprovalRecord) (string, error) {
	records := make([]interface{}, len(approvals))
	for i, rec := range approvals {
		records[i] = rec
	}
	return a.writeBatch(tenantID, "approvals", records)
}

func (a *LocalFileArchiver) writeBatch(tenantID, kind string, records []interface{}) (string, error) {
	tenant := tenantID
	if tenant == "" {
		tenant = "_unscoped"
	}
	dir := filepath.Join(a.basePath, tenant, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	filename := time.Now().UTC().Format("2006-01-02T15-04-05Z") + ".jsonl"
	if a.compress {
		filename += ".gz"
	}
	fpath := filepath.Join(dir, filename)

	f, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if a.compress {
		gw := gzip.NewWriter(f)
		defer gw.Close()
		enc = json.NewEncoder(gw)
	}

	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", fmt.Errorf("encode %s record: %w", kind, err)
		}
	}

	log.Debug().
		Str("path", fpath).
		Int("count", len(records)).
		Str("tenant_id", tenant).
		Msg("Archived records to local file")

	return fpath, nil
}

func (a *LocalFileArchiver) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(a.basePath, 0o755); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	testFile := filepath.Join(a.basePath, ".healthcheck")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("archive path not writable: %w", err)
	}
	os.Remove(testFile)
	return nil
}
