package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/audit"
	"github.com/nerrad567/solar-bridge/internal/history"
)

// WriteRequest is the body of PUT /characteristics/{id}.
type WriteRequest struct {
	Value any `json:"value"`
}

// WriteResponse acknowledges a write. The stored value changes only after
// the follow-up refresh observes the device.
type WriteResponse struct {
	ID     string `json:"id"`
	Value  any    `json:"value"`
	Status string `json:"status"`
}

// HistoryResponse lists recorded values, newest first.
type HistoryResponse struct {
	ID      string          `json:"id"`
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

func (s *Server) handleGetAccessory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.accessory.Snapshot())
}

func (s *Server) handleListCharacteristics(w http.ResponseWriter, _ *http.Request) {
	view := s.accessory.Snapshot()
	out := make([]accessory.CharacteristicView, 0)
	for _, svc := range view.Services {
		out = append(out, svc.Characteristics...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"characteristics": out,
		"count":           len(out),
	})
}

func (s *Server) handleGetCharacteristic(w http.ResponseWriter, r *http.Request) {
	c, ok := s.accessory.Characteristic(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "characteristic not found")
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

// handleWriteCharacteristic forwards a client write to the controller. It
// answers 202 once the write is accepted for delivery to the device.
func (s *Server) handleWriteCharacteristic(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	err := s.accessory.RequestWrite(r.Context(), id, req.Value)
	entry := audit.NewEntry(audit.ActionWrite, id, audit.SourceAPI, err)
	entry.Details = map[string]any{"value": req.Value}
	s.recordAudit(r, entry)
	if err != nil {
		s.logger.Debug("characteristic write rejected", "id", id, "error", err, "request_id", requestID(r.Context()))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, WriteResponse{ID: id, Value: req.Value, Status: "accepted"})
}

func (s *Server) handleCharacteristicHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := s.accessory.Characteristic(id); !ok {
		writeNotFound(w, "characteristic not found")
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, history.ErrCharacteristicRequired) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("history query failed", "id", id, "error", err)
		writeInternalError(w, "failed to read history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{ID: id, Entries: entries, Count: len(entries)})
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	s.accessory.Identify()
	s.recordAudit(r, audit.NewEntry(audit.ActionIdentify, "", audit.SourceAPI, nil))
	w.WriteHeader(http.StatusNoContent)
}
