// Package routing sends completion requests through an ordered list of
// providers and dispatches media intents to the matching generator.
package routing

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harshite737-crypto/haste/internal/metrics"
	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/providers"
)

// Attempt is one entry of the fallback order.
type Attempt struct {
	Name     string
	Provider providers.CompletionProvider
}

// Result is the uniform outcome of a completion attempt or of the whole chain.
type Result struct {
	Text     string
	Provider string
	Err      error
}

// OK reports whether the result carries usable text.
func (r Result) OK() bool { return r.Err == nil }

// MediaResult is a generated asset reduced to a single URL. Images are
// returned inline as a data: URL.
type MediaResult struct {
	Kind model.MediaKind
	URL  string
}

// Config holds the fixed generation parameters.
type Config struct {
	MaxTokens      int
	Temperature    float64
	AttemptTimeout time.Duration
	MediaTimeout   time.Duration
}

// Router owns the provider order and the media generators.
type Router struct {
	attempts []Attempt
	video    providers.VideoProvider
	image    providers.ImageProvider
	cfg      Config
	log      zerolog.Logger
}

// NewRouter creates a router. video and image may be nil; media requests of
// that kind then fail with model.ErrMediaFailed.
func NewRouter(attempts []Attempt, video providers.VideoProvider, image providers.ImageProvider, cfg Config, log zerolog.Logger) *Router {
	return &Router{attempts: attempts, video: video, image: image, cfg: cfg, log: log}
}

// Complete tries each provider once, in order, and returns the first success.
// When every attempt fails the result carries model.ErrAllProvidersFailed.
func (r *Router) Complete(ctx context.Context, req model.CompletionRequest) Result {
	for _, a := range r.attempts {
		res := r.attempt(ctx, a, req)
		if res.OK() {
			return res
		}
		r.log.Warn().
			Str("provider", a.Name).
			Str("identity", string(req.Identity)).
			Err(res.Err).
			Msg("completion provider failed")
	}
	return Result{Err: model.ErrAllProvidersFailed}
}

// attempt runs a single provider call bounded by the attempt timeout. The call
// is detached from caller cancellation so it ends only by completing or timing out.
func (r *Router) attempt(ctx context.Context, a Attempt, req model.CompletionRequest) (res Result) {
	res.Provider = a.Name
	start := time.Now()
	defer func() {
		metrics.ProviderLatency.WithLabelValues(a.Name).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if res.Err != nil {
			outcome = "error"
		}
		metrics.ProviderAttempts.WithLabelValues(a.Name, outcome).Inc()
	}()

	callCtx := context.WithoutCancel(ctx)
	if r.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, r.cfg.AttemptTimeout)
		defer cancel()
	}

	text, err := safeComplete(callCtx, a.Provider, req.SystemContext, req.Text, r.cfg.MaxTokens, r.cfg.Temperature)
	if err == nil && callCtx.Err() != nil {
		// a provider that ignores its context still loses to the deadline
		err = callCtx.Err()
	}
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		res.Err = model.ProviderError{Provider: a.Name, Err: err}
		return res
	}
	res.Text = text
	return res
}

// safeComplete converts a provider panic into an error so one bad adapter
// cannot take the request down.
func safeComplete(ctx context.Context, p providers.CompletionProvider, system, user string, maxTokens int, temp float64) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("provider panic: %v", rec)
		}
	}()
	return p.Complete(ctx, system, user, maxTokens, temp)
}

// GenerateMedia dispatches prompt to the generator for kind. Media has no
// fallback; any failure is reported as model.ErrMediaFailed.
func (r *Router) GenerateMedia(ctx context.Context, kind model.MediaKind, prompt string) (MediaResult, error) {
	callCtx := context.WithoutCancel(ctx)
	if r.cfg.MediaTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, r.cfg.MediaTimeout)
		defer cancel()
	}

	res, err := r.generate(callCtx, kind, prompt)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		metrics.MediaRequests.WithLabelValues(string(kind), "error").Inc()
		r.log.Warn().Str("kind", string(kind)).Err(err).Msg("media provider failed")
		return MediaResult{}, fmt.Errorf("%w: %s: %w", model.ErrMediaFailed, kind, err)
	}
	metrics.MediaRequests.WithLabelValues(string(kind), "ok").Inc()
	return res, nil
}

func (r *Router) generate(ctx context.Context, kind model.MediaKind, prompt string) (MediaResult, error) {
	switch kind {
	case model.MediaVideo:
		if r.video == nil {
			return MediaResult{}, errors.New("video provider not configured")
		}
		urls, err := r.video.Generate(ctx, prompt)
		if err != nil {
			return MediaResult{}, err
		}
		url, ok := Last(urls)
		if !ok || strings.TrimSpace(url) == "" {
			return MediaResult{}, errors.New("video provider returned no output")
		}
		return MediaResult{Kind: kind, URL: url}, nil
	case model.MediaImage:
		if r.image == nil {
			return MediaResult{}, errors.New("image provider not configured")
		}
		raw, err := r.image.Generate(ctx, prompt)
		if err != nil {
			return MediaResult{}, err
		}
		if len(raw) == 0 {
			return MediaResult{}, errors.New("image provider returned no output")
		}
		return MediaResult{Kind: kind, URL: DataURL(raw)}, nil
	default:
		return MediaResult{}, fmt.Errorf("unknown media kind %q", kind)
	}
}

// Last reduces a sequence result to its final element.
func Last[T any](xs []T) (T, bool) {
	var zero T
	if len(xs) == 0 {
		return zero, false
	}
	return xs[len(xs)-1], true
}

// DataURL inlines raw bytes with their sniffed content type.
func DataURL(raw []byte) string {
	return "data:" + http.DetectContentType(raw) + ";base64," + base64.StdEncoding.EncodeToString(raw)
}
