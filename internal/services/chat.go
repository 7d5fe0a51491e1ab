package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harshite737-crypto/haste/internal/facts"
	"github.com/harshite737-crypto/haste/internal/memory"
	"github.com/harshite737-crypto/haste/internal/metrics"
	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/quota"
	"github.com/harshite737-crypto/haste/internal/routing"
	"github.com/harshite737-crypto/haste/internal/session"
)

// Fixed user-facing replies.
const (
	MsgEmpty          = "Say something."
	MsgEmptyMedia     = "Tell me what to generate, for example \"generate image a red bicycle\"."
	MsgOwnerConfirmed = "Owner mode enabled. Limits are lifted for this session."
	MsgProvidersDown  = "Neural link failed. Both engines are unavailable."
	MsgMediaFailed    = "Media generation failed. The generator is unavailable right now, please try again later."
	MsgInternal       = "Something went wrong on our side. Please try again."
	MsgVideoReady     = "Here is your video."
	MsgImageReady     = "Here is your image."

	// UpsellSuffix is appended to routed replies for every plan but unlimited.
	UpsellSuffix = "\n\n---\nUpgrade to Unlimited for instant replies and no daily limits."
)

// System prompt pieces.
const (
	Persona            = "You are Haste, a fast, precise AI assistant.\nRespond clearly and concisely.\n"
	StudentInstruction = "The user is a student. Teach step by step, explain the reasoning behind each step, and check understanding instead of only giving the final answer.\n"
)

// LimitMessage is the reply for a rejected admission.
func LimitMessage(kind model.UsageKind, limit int) string {
	noun := "message"
	if kind == model.KindMedia {
		noun = "media generation"
	}
	return fmt.Sprintf("Daily %s limit reached (%d per day). Upgrade your plan or come back tomorrow.", noun, limit)
}

// State is a step of the request lifecycle.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateOwnerCheck State = "OWNER_CHECK"
	StateAdmitted   State = "ADMITTED"
	StateRejected   State = "REJECTED"
	StateRouted     State = "ROUTED"
	StateReplied    State = "REPLIED"
)

// Outcome labels how a request reached REPLIED.
type Outcome string

const (
	OutcomeEmpty       Outcome = "empty"
	OutcomeOwner       Outcome = "owner"
	OutcomeRejected    Outcome = "rejected"
	OutcomeReplied     Outcome = "replied"
	OutcomeMedia       Outcome = "media"
	OutcomeProviders   Outcome = "providers_failed"
	OutcomeMediaFailed Outcome = "media_failed"
	OutcomeInternal    Outcome = "internal_error"
)

// Router is the provider routing the chat service depends on.
type Router interface {
	Complete(ctx context.Context, req model.CompletionRequest) routing.Result
	GenerateMedia(ctx context.Context, kind model.MediaKind, prompt string) (routing.MediaResult, error)
}

// ChatRequest is an inbound chat message.
type ChatRequest struct {
	Message     string `json:"message"`
	StudentMode bool   `json:"studentMode,omitempty"`
}

// ChatReply is the structured payload every request ends with.
type ChatReply struct {
	Reply    string `json:"reply"`
	VideoURL string `json:"video_url,omitempty"`
	ImageURL string `json:"image_url,omitempty"`

	Outcome Outcome `json:"-"`
	// Path lists the lifecycle states visited, ending in StateReplied.
	Path []State `json:"-"`
}

// ChatDeps wires a ChatService.
type ChatDeps struct {
	Accounts    *AccountService
	Quota       *quota.Manager
	Grants      *session.Grants
	Memory      *memory.Store
	Router      Router
	OwnerPhrase string
	StudentMode bool
	Log         zerolog.Logger
}

// ChatService runs the per-message lifecycle.
type ChatService struct {
	ChatDeps
}

func NewChatService(d ChatDeps) *ChatService { return &ChatService{ChatDeps: d} }

// lifecycle tracks the states visited by one request.
type lifecycle struct {
	path []State
}

func (l *lifecycle) to(s State) { l.path = append(l.path, s) }

func (l *lifecycle) reply(r ChatReply, o Outcome) ChatReply {
	l.to(StateReplied)
	r.Outcome = o
	r.Path = l.path
	metrics.Replies.WithLabelValues(string(o)).Inc()
	return r
}

// Handle runs message through RECEIVED, OWNER_CHECK, ADMITTED or REJECTED,
// ROUTED and REPLIED. It never returns an error: every failure is mapped to a
// fixed reply and the cause is logged.
func (s *ChatService) Handle(ctx context.Context, id model.Identity, req ChatRequest) ChatReply {
	lc := &lifecycle{path: []State{StateReceived}}
	log := s.Log.With().Str("identity", string(id)).Logger()

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return lc.reply(ChatReply{Reply: MsgEmpty}, OutcomeEmpty)
	}

	lc.to(StateOwnerCheck)
	if s.IsOwnerPhrase(msg) {
		s.Grants.Grant(id)
		log.Info().Msg("owner mode granted")
		return lc.reply(ChatReply{Reply: MsgOwnerConfirmed}, OutcomeOwner)
	}

	intent := routing.ParseIntent(msg)
	if intent.Media && intent.Prompt == "" {
		return lc.reply(ChatReply{Reply: MsgEmptyMedia}, OutcomeEmpty)
	}
	kind := model.KindMessage
	if intent.Media {
		kind = model.KindMedia
	}

	plan, dec, err := s.admit(ctx, id, kind)
	if err != nil {
		log.Error().Stack().Err(err).Msg("admission failed")
		return lc.reply(ChatReply{Reply: MsgInternal}, OutcomeInternal)
	}
	if !dec.Allowed {
		lc.to(StateRejected)
		return lc.reply(ChatReply{Reply: LimitMessage(kind, dec.Limit)}, OutcomeRejected)
	}
	lc.to(StateAdmitted)

	if err := quota.Wait(ctx, s.Quota.Delay(id, plan)); err != nil {
		log.Debug().Err(err).Msg("request abandoned during plan delay")
		return lc.reply(ChatReply{Reply: MsgInternal}, OutcomeInternal)
	}

	lc.to(StateRouted)
	var out ChatReply
	var outcome Outcome
	if intent.Media {
		res, err := s.Router.GenerateMedia(ctx, intent.Kind, intent.Prompt)
		if err != nil {
			return lc.reply(ChatReply{Reply: MsgMediaFailed}, OutcomeMediaFailed)
		}
		out, outcome = mediaReply(res), OutcomeMedia
	} else {
		system, err := s.prepareContext(ctx, id, msg, req.StudentMode)
		if err != nil {
			log.Error().Stack().Err(err).Msg("memory unavailable")
			return lc.reply(ChatReply{Reply: MsgInternal}, OutcomeInternal)
		}
		res := s.Router.Complete(ctx, model.CompletionRequest{Identity: id, Text: msg, SystemContext: system})
		if res.Err != nil {
			log.Error().Err(res.Err).Msg("completion failed on every provider")
			return lc.reply(ChatReply{Reply: MsgProvidersDown}, OutcomeProviders)
		}
		out, outcome = ChatReply{Reply: res.Text}, OutcomeReplied
	}

	if !plan.IsUnlimited() && !dec.Owner {
		out.Reply += UpsellSuffix
	}
	return lc.reply(out, outcome)
}

// IsOwnerPhrase reports an exact, case-insensitive match of the trimmed
// message against the configured phrase. An unset phrase never matches.
func (s *ChatService) IsOwnerPhrase(msg string) bool {
	phrase := strings.TrimSpace(s.OwnerPhrase)
	return phrase != "" && strings.EqualFold(strings.TrimSpace(msg), phrase)
}

// admit resolves the effective plan and asks the quota manager. Owner grants
// are treated as the unlimited plan.
func (s *ChatService) admit(ctx context.Context, id model.Identity, kind model.UsageKind) (model.Plan, quota.Decision, error) {
	var plan model.Plan
	if s.Grants.Active(id) {
		plan = s.Accounts.Unlimited()
	} else {
		p, err := s.Accounts.PlanFor(ctx, id)
		if err != nil {
			return model.Plan{}, quota.Decision{}, err
		}
		plan = p
	}
	dec, err := s.Quota.Admit(ctx, id, plan, kind)
	return plan, dec, err
}

// prepareContext remembers msg when it discloses something durable and builds
// the system prompt with the memory block.
func (s *ChatService) prepareContext(ctx context.Context, id model.Identity, msg string, student bool) (string, error) {
	if facts.IsImportant(msg) {
		if err := s.Memory.Append(ctx, id, msg); err != nil {
			return "", fmt.Errorf("append fact: %w", err)
		}
	}
	block, err := s.Memory.RenderContext(ctx, id)
	if err != nil {
		return "", fmt.Errorf("render context: %w", err)
	}
	return SystemPrompt(block, student && s.StudentMode), nil
}

// SystemPrompt assembles the persona, the optional tutoring instruction and
// the memory block.
func SystemPrompt(memoryBlock string, student bool) string {
	var b strings.Builder
	b.WriteString(Persona)
	if student {
		b.WriteString(StudentInstruction)
	}
	b.WriteString(memoryBlock)
	return b.String()
}

func mediaReply(res routing.MediaResult) ChatReply {
	if res.Kind == model.MediaImage {
		return ChatReply{Reply: MsgImageReady, ImageURL: res.URL}
	}
	return ChatReply{Reply: MsgVideoReady, VideoURL: res.URL}
}

// Generate serves the standalone media endpoint. It applies the same owner,
// quota and delay rules as a chat media intent and returns typed errors:
// model.ErrEmptyInput, model.QuotaExceededError or model.ErrMediaFailed.
func (s *ChatService) Generate(ctx context.Context, id model.Identity, kind model.MediaKind, prompt string) (routing.MediaResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return routing.MediaResult{}, model.ErrEmptyInput
	}
	if kind != model.MediaVideo && kind != model.MediaImage {
		return routing.MediaResult{}, model.NewValidationError("kind", fmt.Sprintf("unsupported media kind %q", kind))
	}

	plan, dec, err := s.admit(ctx, id, model.KindMedia)
	if err != nil {
		return routing.MediaResult{}, err
	}
	if !dec.Allowed {
		return routing.MediaResult{}, model.QuotaExceededError{Kind: model.KindMedia, Limit: dec.Limit}
	}
	if err := quota.Wait(ctx, s.Quota.Delay(id, plan)); err != nil {
		return routing.MediaResult{}, err
	}
	res, err := s.Router.GenerateMedia(ctx, kind, prompt)
	if err != nil {
		if !errors.Is(err, model.ErrMediaFailed) {
			err = fmt.Errorf("%w: %w", model.ErrMediaFailed, err)
		}
		return routing.MediaResult{}, err
	}
	return res, nil
}
