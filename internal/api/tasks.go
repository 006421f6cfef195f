package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	"git.home.luguber.info/inful/taskescrow/internal/eventstore"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

const maxBodyBytes = 64 << 10

// CreateTaskRequest is the body of POST /v1/tasks. Identities and the
// signature are base58; amount is a decimal string.
type CreateTaskRequest struct {
	Task      string `json:"task"`
	Depositor string `json:"depositor"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Signature string `json:"signature"`
}

// TaskResponse describes one escrow.
type TaskResponse struct {
	Slot   string            `json:"slot"`
	State  escrow.State      `json:"state"`
	Record escrow.TaskEscrow `json:"record"`
}

// InitializeResponse is returned by POST /v1/initialize.
type InitializeResponse struct {
	ProgramID string `json:"program_id"`
	Greeting  string `json:"greeting"`
	Reference string `json:"reference"`
}

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	Records escrow.Stats             `json:"records"`
	Ledger  *eventstore.LedgerCounts `json:"ledger,omitempty"`
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Initialize(r.Context(), escrow.InitializeAccounts{}); err != nil {
		s.Error(w, r, err)
		return
	}
	program := s.registry.Program()
	s.Success(w, http.StatusOK, InitializeResponse{
		ProgramID: program.String(),
		Greeting:  escrow.Greeting(program),
		Reference: uuid.NewString(),
	})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.Error(w, r, err)
		return
	}

	accounts, amount, err := req.parse()
	if err != nil {
		s.Error(w, r, err)
		return
	}

	rec, err := s.registry.CreateTask(r.Context(), accounts, amount)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.Success(w, http.StatusCreated, TaskResponse{Slot: accounts.Task.String(), State: rec.State(), Record: rec})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	rec, err := s.registry.Lookup(r.Context(), slot)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.Success(w, http.StatusOK, TaskResponse{Slot: slot.String(), State: rec.State(), Record: rec})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	if err := s.registry.CompleteTask(r.Context(), escrow.CompleteTaskAccounts{Task: slot}); err != nil {
		s.Error(w, r, err)
		return
	}
	rec, err := s.registry.Lookup(r.Context(), slot)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	s.Success(w, http.StatusOK, TaskResponse{Slot: slot.String(), State: rec.State(), Record: rec})
}

func (s *Server) handleTaskHistory(w http.ResponseWriter, r *http.Request) {
	slot, err := slotParam(r)
	if err != nil {
		s.Error(w, r, err)
		return
	}
	events, err := s.audit.History(r.Context(), slot.String())
	if err != nil {
		s.Error(w, r, err)
		return
	}

	type entry struct {
		ID        string          `json:"id"`
		Type      string          `json:"type"`
		Timestamp string          `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	out := make([]entry, 0, len(events))
	for _, e := range events {
		out = append(out, entry{
			ID:        e.UUID(),
			Type:      e.Type(),
			Timestamp: e.Timestamp().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Payload:   e.Payload(),
		})
	}
	s.Success(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.registry.Stats(r.Context())
	if err != nil {
		s.Error(w, r, err)
		return
	}
	resp := StatsResponse{Records: st}
	if s.audit != nil && s.audit.Projection() != nil {
		counts := s.audit.Projection().Counts()
		resp.Ledger = &counts
	}
	s.Success(w, http.StatusOK, resp)
}

func (req CreateTaskRequest) parse() (escrow.CreateTaskAccounts, uint64, error) {
	task, err := parseIdentityField("task", req.Task)
	if err != nil {
		return escrow.CreateTaskAccounts{}, 0, err
	}
	depositor, err := parseIdentityField("depositor", req.Depositor)
	if err != nil {
		return escrow.CreateTaskAccounts{}, 0, err
	}
	recipient, err := parseIdentityField("recipient", req.Recipient)
	if err != nil {
		return escrow.CreateTaskAccounts{}, 0, err
	}
	amount, err := strconv.ParseUint(strings.TrimSpace(req.Amount), 10, 64)
	if err != nil {
		return escrow.CreateTaskAccounts{}, 0, ferrors.ValidationError("amount must be an unsigned 64-bit decimal").
			WithCause(err).
			WithContext("field", "amount").
			Build()
	}
	sig, err := identity.DecodeSignature(req.Signature)
	if err != nil {
		return escrow.CreateTaskAccounts{}, 0, err
	}

	return escrow.CreateTaskAccounts{
		Task:      task,
		Depositor: identity.Proof{Signer: depositor, Signature: sig},
		Recipient: recipient,
	}, amount, nil
}

func parseIdentityField(field, value string) (identity.Identity, error) {
	id, err := identity.Parse(value)
	if err != nil {
		return identity.Zero, ferrors.ValidationError("invalid "+field).
			WithCause(err).
			WithContext("field", field).
			Build()
	}
	return id, nil
}

func slotParam(r *http.Request) (identity.Identity, error) {
	return parseIdentityField("slot", chi.URLParam(r, "slot"))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ferrors.ValidationError("invalid request body").WithCause(err).Build()
	}
	return nil
}
