package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/harshite737-crypto/haste/internal/api/recovery"
	"github.com/harshite737-crypto/haste/internal/identity"
	"github.com/harshite737-crypto/haste/internal/metrics"
	"github.com/harshite737-crypto/haste/internal/services"
)

// Deps are the services the HTTP surface is built from.
type Deps struct {
	// Chat also supplies the owner grants shared with Usage.
	Chat     *services.ChatService
	Usage    *services.UsageService
	Accounts *services.AccountService
	Resolver *identity.Resolver
	Health   *HealthHandler
	// Billing serves the payment webhook; nil leaves the route unregistered.
	Billing http.Handler
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	chat := NewChatHandler(d.Chat, d.Resolver, d.Chat.Grants)
	account := NewAccountHandler(d.Usage, d.Accounts, d.Resolver, d.Chat.Grants)
	healthHandler := d.Health
	if healthHandler == nil {
		healthHandler = NewHealthHandler(nil)
	}

	// Chat
	router.HandleFunc("/api/chat", chat.Chat).Methods("POST")
	router.HandleFunc("/api/generate", chat.Generate).Methods("POST")

	// Account
	router.HandleFunc("/api/usage", account.Usage).Methods("GET")
	router.HandleFunc("/api/plans", account.Plans).Methods("GET")
	if d.Billing != nil {
		router.Handle("/api/billing/webhook", d.Billing).Methods("POST")
	}

	// Operations
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	return router
}
