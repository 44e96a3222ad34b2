// Package audit records administrative changes to offers and product tax settings.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/musharafmush/pos-sub010/internal/common"
	"github.com/musharafmush/pos-sub010/internal/obs"
)

// Entry is one recorded administrative request.
type Entry struct {
	ID           int64           `json:"id"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	TerminalID   string          `json:"terminalId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        string          `json:"route,omitempty"`
	Status       int             `json:"status"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Store persists and lists audit entries.
type Store interface {
	InsertAuditEntry(ctx context.Context, e Entry) error
	ListAuditEntries(ctx context.Context, limit, offset int) ([]Entry, error)
}

// Service persists audit entries for administrative flows.
type Service struct {
	Store   Store
	Enabled bool
}

// Record persists an audit entry for req when auditing is enabled.
func (s *Service) Record(ctx context.Context, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if s == nil || !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePatternFromContext(req.Context())
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	if status == 0 {
		status = http.StatusOK
	}
	return s.Store.InsertAuditEntry(ctx, Entry{
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   strings.TrimSpace(resourceID),
		TerminalID:   strings.TrimSpace(req.Header.Get(obs.TerminalHeader)),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        route,
		Status:       status,
		IP:           common.ClientIP(req),
		UserAgent:    strings.TrimSpace(req.Header.Get("User-Agent")),
		RequestID:    strings.TrimSpace(req.Header.Get("X-Request-ID")),
		Metadata:     toJSON(metadata, req.URL.RawQuery),
	})
}

// List pages through recorded entries, newest first.
func (s *Service) List(ctx context.Context, page common.Pagination) ([]Entry, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("audit: store not configured")
	}
	return s.Store.ListAuditEntries(ctx, page.PerPage, page.Offset())
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.TrimSpace(route)
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(strings.Trim(route, "/"), "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		return strings.Join(segments[2:], ".")
	}
	return strings.ReplaceAll(strings.Trim(route, "/"), "/", ".")
}

func toJSON(metadata []byte, query string) json.RawMessage {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
