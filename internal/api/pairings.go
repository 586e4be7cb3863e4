package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/solar-bridge/internal/audit"
	"github.com/nerrad567/solar-bridge/internal/pairing"
)

// PairRequest is the body of POST /pairings. PublicKey is base64 in JSON.
type PairRequest struct {
	SetupCode    string `json:"setup_code"`
	ControllerID string `json:"controller_id"`
	PublicKey    []byte `json:"public_key"`
}

// PairResponse is the body of a successful POST /pairings. The token is
// sent as "Authorization: Bearer <token>" on protected routes.
type PairResponse struct {
	Pairing   pairing.Pairing `json:"pairing"`
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresIn int             `json:"expires_in"`
}

// PairingsResponse lists paired controllers with the current pairing state.
// The setup code never leaves the accessory over the API; it is shown in the
// startup log and by "solarbridge pairing".
type PairingsResponse struct {
	State    string            `json:"state"`
	Pairings []pairing.Pairing `json:"pairings"`
}

func (s *Server) handleListPairings(w http.ResponseWriter, r *http.Request) {
	if s.pairing == nil {
		writeUnavailable(w, "pairing is disabled")
		return
	}

	list, err := s.pairing.Pairings(r.Context())
	if err != nil {
		s.logger.Error("listing pairings failed", "error", err)
		writeInternalError(w, "failed to list pairings")
		return
	}
	if list == nil {
		list = []pairing.Pairing{}
	}

	writeJSON(w, http.StatusOK, PairingsResponse{State: s.pairing.State(), Pairings: list})
}

func (s *Server) handleCreatePairing(w http.ResponseWriter, r *http.Request) {
	if s.pairing == nil {
		writeUnavailable(w, "pairing is disabled")
		return
	}

	var req PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SetupCode == "" {
		writeBadRequest(w, "setup_code is required")
		return
	}

	p := pairing.Pairing{ControllerID: req.ControllerID, PublicKey: req.PublicKey}
	err := s.pairing.Pair(r.Context(), req.SetupCode, p)
	s.recordAudit(r, audit.NewEntry(audit.ActionPair, req.ControllerID, audit.SourceAPI, err))
	if err != nil {
		s.logger.Warn("pairing rejected", "controller_id", req.ControllerID, "error", err)
		writeDomainError(w, err)
		return
	}

	list, err := s.pairing.Pairings(r.Context())
	if err != nil {
		writeInternalError(w, "failed to read pairing")
		return
	}
	for _, stored := range list {
		if stored.ControllerID == req.ControllerID {
			p = stored
			break
		}
	}

	token, err := s.pairing.IssueToken(r.Context(), p.ControllerID)
	if err != nil {
		s.logger.Error("issuing controller token failed", "controller_id", p.ControllerID, "error", err)
		writeInternalError(w, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusCreated, PairResponse{
		Pairing:   p,
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(pairing.TokenTTL.Seconds()),
	})
}

func (s *Server) handleDeletePairing(w http.ResponseWriter, r *http.Request) {
	if s.pairing == nil {
		writeUnavailable(w, "pairing is disabled")
		return
	}

	id := chi.URLParam(r, "controllerID")
	// Any controller may remove itself; removing another needs admin.
	if c := claimsFromContext(r.Context()); c == nil || (!c.Admin && c.ControllerID() != id) {
		s.recordAudit(r, audit.NewEntry(audit.ActionUnpair, id, audit.SourceAPI, pairing.ErrNotAdmin))
		writeDomainError(w, pairing.ErrNotAdmin)
		return
	}
	err := s.pairing.Unpair(r.Context(), id)
	s.recordAudit(r, audit.NewEntry(audit.ActionUnpair, id, audit.SourceAPI, err))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
