package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/orchestrator"
)

// Pricing converts a requested quantity into a credit cost. The orchestrator
// treats the computed cost as authoritative.
type Pricing struct {
	CreditsPerUnit int64
}

// Cost returns the credit cost for producing quantity units.
func (p Pricing) Cost(quantity int) int64 {
	if quantity < 1 {
		quantity = 1
	}
	return p.CreditsPerUnit * int64(quantity)
}

// App bundles the dependencies shared by all HTTP handlers.
type App struct {
	Orch    *orchestrator.Orchestrator
	Ledger  domain.Ledger
	Pricing Pricing
	Logger  zerolog.Logger
}

func NewApp(orch *orchestrator.Orchestrator, ledger domain.Ledger, pricing Pricing, logger zerolog.Logger) *App {
	return &App{Orch: orch, Ledger: ledger, Pricing: pricing, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// currentUserID extracts the requestor identity. Authentication lives at the
// edge; this service trusts the X-User-ID header set by it.
func (a *App) currentUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

var localizedMessages = map[string]map[string]string{
	"insufficient_credits": {
		"en": "not enough credits for this generation",
		"id": "kredit tidak cukup untuk generasi ini",
	},
	"job_not_found": {
		"en": "job not found or expired",
		"id": "pekerjaan tidak ditemukan atau kedaluwarsa",
	},
	"unauthorized": {
		"en": "missing user identity",
		"id": "identitas pengguna tidak ditemukan",
	},
}

func (a *App) localize(r *http.Request, key string) string {
	locale := middleware.LocaleFromContext(r.Context())
	if byLocale, ok := localizedMessages[key]; ok {
		if msg, ok := byLocale[locale]; ok {
			return msg
		}
		if msg, ok := byLocale["en"]; ok {
			return msg
		}
	}
	return key
}
