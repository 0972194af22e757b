package handlers

import (
	"errors"
	"net/http"

	"server/internal/domain"
)

type creditsResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// CreditsBalance reports the requestor's current credit balance.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", a.localize(r, "unauthorized"))
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "no credit account")
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("handlers: balance lookup failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read balance")
		return
	}
	a.json(w, http.StatusOK, creditsResponse{UserID: userID, Balance: balance})
}
