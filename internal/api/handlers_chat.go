package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/harshite737-crypto/haste/internal/api/respond"
	"github.com/harshite737-crypto/haste/internal/identity"
	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/services"
	"github.com/harshite737-crypto/haste/internal/session"
)

const maxRequestBytes = 1 << 20

// identifier resolves callers for every handler.
type identifier struct {
	resolver *identity.Resolver
	grants   *session.Grants
}

// identify resolves the caller and persists a freshly minted anonymous id.
// A verified owner token grants owner mode to its identity; nothing else
// taken from the request can.
func (i identifier) identify(w http.ResponseWriter, r *http.Request) model.Identity {
	res := i.resolver.Resolve(r)
	if res.Minted {
		i.resolver.SetCookie(w, res.Identity)
	}
	if res.Owner && res.Authenticated {
		i.grants.Grant(res.Identity)
	}
	return res.Identity
}

// ChatHandler serves the chat and media endpoints.
type ChatHandler struct {
	identifier
	svc *services.ChatService
}

func NewChatHandler(svc *services.ChatService, resolver *identity.Resolver, grants *session.Grants) *ChatHandler {
	return &ChatHandler{identifier: identifier{resolver: resolver, grants: grants}, svc: svc}
}

// decode reads a JSON body. An empty body decodes to the zero value.
func decode(r *http.Request, dst any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Chat handles POST /api/chat. Every outcome, including provider failure and
// quota rejection, is a 200 with a reply the UI can render.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var in services.ChatRequest
	if err := decode(r, &in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	id := h.identify(w, r)
	respond.WriteJSON(w, http.StatusOK, h.svc.Handle(r.Context(), id, in))
}

type generateRequest struct {
	Prompt string          `json:"prompt"`
	Kind   model.MediaKind `json:"kind,omitempty"`
}

type generateResponse struct {
	URL  string          `json:"url"`
	Kind model.MediaKind `json:"kind"`
}

// Generate handles POST /api/generate. kind defaults to video.
func (h *ChatHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var in generateRequest
	if err := decode(r, &in); err != nil {
		respond.WriteBadRequest(w, "invalid json")
		return
	}
	if in.Kind == "" {
		in.Kind = model.MediaVideo
	}
	id := h.identify(w, r)
	res, err := h.svc.Generate(r.Context(), id, in.Kind, in.Prompt)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, generateResponse{URL: res.URL, Kind: res.Kind})
}
