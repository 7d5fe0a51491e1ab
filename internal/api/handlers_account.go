package api

import (
	"net/http"

	"github.com/harshite737-crypto/haste/internal/api/respond"
	"github.com/harshite737-crypto/haste/internal/identity"
	"github.com/harshite737-crypto/haste/internal/services"
	"github.com/harshite737-crypto/haste/internal/session"
)

// AccountHandler exposes plans and the caller's usage.
type AccountHandler struct {
	identifier
	usage    *services.UsageService
	accounts *services.AccountService
}

func NewAccountHandler(usage *services.UsageService, accounts *services.AccountService, resolver *identity.Resolver, grants *session.Grants) *AccountHandler {
	return &AccountHandler{identifier: identifier{resolver: resolver, grants: grants}, usage: usage, accounts: accounts}
}

// Usage handles GET /api/usage.
func (h *AccountHandler) Usage(w http.ResponseWriter, r *http.Request) {
	id := h.identify(w, r)
	v, err := h.usage.Usage(r.Context(), id)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, v)
}

// Plans handles GET /api/plans.
func (h *AccountHandler) Plans(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]any{"plans": h.accounts.Plans()})
}
