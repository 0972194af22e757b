package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/orchestrator"
)

const maxQuantityPerRequest = 8

type generateRequest struct {
	Provider       string          `json:"provider"`
	Quantity       int             `json:"quantity"`
	Prompt         json.RawMessage `json:"prompt"`
	MaxWaitSeconds int             `json:"max_wait_seconds"`
}

type generateResponse struct {
	JobID            string `json:"job_id"`
	Status           string `json:"status"`
	CreditCost       int64  `json:"credit_cost"`
	RemainingCredits int64  `json:"remaining_credits"`
}

type outcomeResponse struct {
	Status             string `json:"status"`
	Reason             string `json:"reason,omitempty"`
	ArtifactRef        string `json:"artifact_ref,omitempty"`
	SavedID            string `json:"saved_id,omitempty"`
	PersistenceWarning bool   `json:"persistence_warning,omitempty"`
	ProviderJobID      string `json:"provider_job_id,omitempty"`
	Charged            bool   `json:"charged"`
}

type jobStatusResponse struct {
	JobID         string           `json:"job_id"`
	State         string           `json:"state"`
	ProviderJobID string           `json:"provider_job_id,omitempty"`
	AttemptCount  int              `json:"attempt_count"`
	LastPolledAt  *time.Time       `json:"last_polled_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Outcome       *outcomeResponse `json:"outcome,omitempty"`
}

// GenerationCreate enqueues a generation job and returns its handle id. The
// job resolves asynchronously; callers follow up via GenerationStatus.
func (a *App) GenerationCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", a.localize(r, "unauthorized"))
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Prompt) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	if req.Quantity > maxQuantityPerRequest {
		req.Quantity = maxQuantityPerRequest
	}

	payload, err := json.Marshal(map[string]any{
		"prompt":   json.RawMessage(req.Prompt),
		"quantity": req.Quantity,
	})
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid prompt")
		return
	}

	cost := a.Pricing.Cost(req.Quantity)
	genReq := domain.GenerationRequest{
		RequestorID: userID,
		Provider:    req.Provider,
		Payload:     payload,
		CreditCost:  cost,
	}
	if req.MaxWaitSeconds > 0 {
		genReq.MaxWait = time.Duration(req.MaxWaitSeconds) * time.Second
	}

	h := a.Orch.StartAsync(r.Context(), genReq)

	// Advisory only; the authoritative check happens inside Reserve.
	remaining, err := a.Ledger.Balance(context.WithoutCancel(r.Context()), userID)
	if err != nil {
		remaining = 0
	}
	a.json(w, http.StatusAccepted, generateResponse{
		JobID:            h.JobID,
		Status:           "accepted",
		CreditCost:       cost,
		RemainingCredits: remaining,
	})
}

// GenerationStatus reports the current state or terminal outcome of a job.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", a.localize(r, "unauthorized"))
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	h, ok := a.Orch.Lookup(jobID)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", a.localize(r, "job_not_found"))
		return
	}
	a.json(w, http.StatusOK, jobStatusView(h.View()))
}

func jobStatusView(snap orchestrator.Snapshot) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:         snap.JobID,
		State:         string(snap.State),
		ProviderJobID: snap.ProviderJobID,
		AttemptCount:  snap.AttemptCount,
		CreatedAt:     snap.CreatedAt,
	}
	if !snap.LastPolledAt.IsZero() {
		t := snap.LastPolledAt
		resp.LastPolledAt = &t
	}
	if snap.Outcome != nil {
		out := snap.Outcome
		resp.Outcome = &outcomeResponse{
			Status:             string(out.Status),
			Reason:             out.Reason,
			ArtifactRef:        out.ArtifactRef,
			SavedID:            out.SavedID,
			PersistenceWarning: out.PersistenceWarning,
			ProviderJobID:      out.ProviderJobID,
			Charged:            out.Charged(),
		}
	}
	return resp
}
