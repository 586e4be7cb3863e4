package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/solar-bridge/internal/audit"
)

// AuditTrail records and lists client actions.
type AuditTrail interface {
	Record(ctx context.Context, e audit.Entry) error
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// recordAudit records a client action. Failures are logged and never fail the
// request that caused them.
func (s *Server) recordAudit(r *http.Request, e audit.Entry) {
	if s.auditTrail == nil {
		return
	}
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	if id := requestID(r.Context()); id != "" {
		e.Details["request_id"] = id
	}
	e.Details["remote_addr"] = r.RemoteAddr
	if c := claimsFromContext(r.Context()); c != nil {
		e.Details["controller_id"] = c.ControllerID()
	}

	if err := s.auditTrail.Record(context.WithoutCancel(r.Context()), e); err != nil {
		s.logger.Warn("recording audit entry failed", "action", e.Action, "error", err)
	}
}

// handleListAudit handles GET /api/v1/audit.
// Query parameters: action, target, source, limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditTrail == nil {
		writeUnavailable(w, "audit trail is disabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
		Target: q.Get("target"),
		Source: q.Get("source"),
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, p.name+" must be a non-negative integer")
			return
		}
		*p.dst = n
	}

	result, err := s.auditTrail.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing audit entries failed", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
