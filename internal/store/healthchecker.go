package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/harshite737-crypto/haste/internal/health"
	"github.com/harshite737-crypto/haste/internal/model"
)

// NewStoreHealthChecker returns a checker probing the store. Stores exposing
// health.HealthPinger are pinged directly; others get a cheap account lookup.
func NewStoreHealthChecker(st Store, log zerolog.Logger, probeTimeout time.Duration) *health.PingChecker {
	if p, ok := st.(health.HealthPinger); ok {
		return health.NewPingChecker("store", p, log, probeTimeout)
	}
	return health.NewPingChecker("store", readProbe{st}, log, probeTimeout)
}

type readProbe struct{ st Store }

// HealthPing treats ErrNotFound as success: the backend answered.
func (r readProbe) HealthPing(ctx context.Context) error {
	_, err := r.st.Accounts().Get(ctx, "__health_check__")
	if err == nil || errors.Is(err, model.ErrNotFound) {
		return nil
	}
	return err
}
