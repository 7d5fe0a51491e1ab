package chatservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshite737-crypto/haste/internal/api"
	"github.com/harshite737-crypto/haste/internal/config"
	"github.com/harshite737-crypto/haste/internal/health"
	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/plans"
	"github.com/harshite737-crypto/haste/internal/store/memstore"
)

func TestCalculateStartupHealthTimeout(t *testing.T) {
	tests := []struct {
		interval int
		want     int
	}{
		{0, 30},
		{1, 30},
		{15, 30},
		{16, 32},
		{60, 120},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, calculateStartupHealthTimeout(tt.interval), "interval %d", tt.interval)
	}
}

func TestNewProviders_MediaNeedsKeys(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.PrimaryBaseURL = "http://primary.invalid/v1"
	cfg.SecondaryBaseURL = "http://secondary.invalid/v1"

	ps := newProviders(cfg, zerolog.Nop())
	require.Len(t, ps.attempts, 2)
	assert.Equal(t, "primary", ps.attempts[0].Name)
	assert.Equal(t, "secondary", ps.attempts[1].Name)
	assert.Nil(t, ps.video)
	assert.Nil(t, ps.image)
	assert.Len(t, ps.upstreams, 2)

	cfg.VideoAPIKey = "v"
	cfg.ImageAPIKey = "i"
	ps = newProviders(cfg, zerolog.Nop())
	assert.NotNil(t, ps.video)
	assert.NotNil(t, ps.image)
	assert.Len(t, ps.upstreams, 4)
}

func TestNewProviders_SkipsUnsetBaseURL(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.PrimaryBaseURL = "http://primary.invalid/v1"
	ps := newProviders(cfg, zerolog.Nop())
	require.Len(t, ps.attempts, 1)
	assert.Equal(t, "primary", ps.attempts[0].Name)
}

func fakeUpstream(t *testing.T, status int, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			w.WriteHeader(http.StatusOK)
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
			})
			return
		}
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func undelayed(t *testing.T) *plans.Catalog {
	t.Helper()
	var ps []model.Plan
	for _, p := range plans.Defaults {
		p.DelayMin, p.DelayMax = 0, 0
		ps = append(ps, p)
	}
	c, err := plans.New(model.PlanFree, ps...)
	require.NoError(t, err)
	return c
}

func TestBuildRouter_FallsBackToSecondary(t *testing.T) {
	var primaryCalls, secondaryCalls atomic.Int32
	primary := fakeUpstream(t, http.StatusServiceUnavailable, "", &primaryCalls)
	secondary := fakeUpstream(t, http.StatusOK, "from secondary", &secondaryCalls)

	cfg := config.NewForTesting()
	cfg.PrimaryBaseURL = primary.URL + "/v1"
	cfg.SecondaryBaseURL = secondary.URL + "/v1"

	h := buildRouter(cfg, zerolog.Nop(), memstore.New(), undelayed(t), newProviders(cfg, zerolog.Nop()), api.NewHealthHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		Reply string `json:"reply"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	assert.True(t, strings.HasPrefix(out.Reply, "from secondary"))
	assert.Equal(t, int32(1), primaryCalls.Load())
	assert.Equal(t, int32(1), secondaryCalls.Load())
}

func TestBuildRouter_BillingRouteOnlyWithSecret(t *testing.T) {
	cfg := config.NewForTesting()
	h := buildRouter(cfg, zerolog.Nop(), memstore.New(), undelayed(t), providerSet{}, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	cfg.StripeWebhookSecret = "whsec_test"
	h = buildRouter(cfg, zerolog.Nop(), memstore.New(), undelayed(t), providerSet{}, nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader("{}")))
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unsigned payload is rejected")
}

func TestStartHealthCheckers_ProvidersDoNotGate(t *testing.T) {
	var calls atomic.Int32
	up := fakeUpstream(t, http.StatusOK, "x", &calls)

	cfg := config.NewForTesting()
	cfg.PrimaryBaseURL = up.URL + "/v1"
	cfg.SecondaryBaseURL = "http://127.0.0.1:1/v1"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, components := startHealthCheckers(ctx, cfg, zerolog.Nop(), memstore.New(), newProviders(cfg, zerolog.Nop()))
	require.Len(t, components, 3)
	require.NoError(t, waitUntilHealthy(ctx, cfg, svc))

	byName := map[string]health.HealthChecker{}
	for _, c := range components {
		byName[c.Name()] = c
	}
	assert.Eventually(t, func() bool { return byName["primary"].IsHealthy() }, 2*time.Second, 20*time.Millisecond)
	assert.False(t, byName["secondary"].IsHealthy())
	assert.True(t, svc.IsHealthy())
}
