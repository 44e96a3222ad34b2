package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/musharafmush/pos-sub010/internal/audit"
)

const auditColumns = `id, action, resource_type, COALESCE(resource_id, ''), COALESCE(terminal_id, ''),
method, path, COALESCE(route, ''), status, COALESCE(ip, ''), COALESCE(user_agent, ''),
COALESCE(request_id, ''), metadata::text, created_at`

// InsertAuditEntry appends an entry to the audit log.
func (s *Store) InsertAuditEntry(ctx context.Context, e audit.Entry) error {
	if err := s.ready(); err != nil {
		return err
	}
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = string(e.Metadata)
	}
	_, err := s.db.Exec(ctx, `INSERT INTO audit_logs
(action, resource_type, resource_id, terminal_id, method, path, route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12::jsonb)`,
		e.Action, e.ResourceType, e.ResourceID, e.TerminalID, e.Method, e.Path, e.Route, e.Status,
		e.IP, e.UserAgent, e.RequestID, metadata)
	return mapError(err)
}

// ListAuditEntries returns audit entries newest first.
func (s *Store) ListAuditEntries(ctx context.Context, limit, offset int) ([]audit.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs
ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	var out []audit.Entry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapError(rows.Err())
}

func scanAuditEntry(row pgx.Row) (audit.Entry, error) {
	var (
		e        audit.Entry
		status   int32
		metadata pgtype.Text
	)
	if err := row.Scan(&e.ID, &e.Action, &e.ResourceType, &e.ResourceID, &e.TerminalID,
		&e.Method, &e.Path, &e.Route, &status, &e.IP, &e.UserAgent,
		&e.RequestID, &metadata, &e.CreatedAt); err != nil {
		return audit.Entry{}, err
	}
	e.Status = int(status)
	if metadata.Valid {
		e.Metadata = json.RawMessage(metadata.String)
	}
	return e, nil
}
