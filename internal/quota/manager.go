// Package quota enforces per-identity daily limits and the plan-based
// response delay.
package quota

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/harshite737-crypto/haste/internal/metrics"
	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/session"
	"github.com/harshite737-crypto/haste/internal/store"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	// Remaining is the allowance left after this request, or model.Unbounded.
	Remaining int
	// Limit is the plan limit that applied, or model.Unbounded.
	Limit int
	// Owner is set when an owner grant bypassed the limit.
	Owner bool
}

// Manager tracks usage counters through a store.Usage backend.
type Manager struct {
	usage  store.Usage
	grants *session.Grants
	locks  *keyedMutex
	log    zerolog.Logger

	now    func() time.Time
	sample func(n int64) int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used to determine "today".
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSampler overrides the uniform sampler used for delays; it must return a
// value in [0, n).
func WithSampler(sample func(n int64) int64) Option {
	return func(m *Manager) { m.sample = sample }
}

// NewManager creates a quota manager.
func NewManager(usage store.Usage, grants *session.Grants, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		usage:  usage,
		grants: grants,
		locks:  newKeyedMutex(),
		log:    log,
		now:    time.Now,
		sample: rand.Int64N,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) today() string {
	return m.now().UTC().Format(model.DayLayout)
}

// load returns the counter for id with the day rollover applied.
func (m *Manager) load(ctx context.Context, id model.Identity) (*model.UsageCounter, bool, error) {
	today := m.today()
	c, err := m.usage.Get(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return &model.UsageCounter{Day: today}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return c, c.RollOver(today), nil
}

// Admit decides whether id may make one more request of kind under plan.
// Exactly plan.Limit(kind) requests per day are admitted; the next is refused
// without touching the counter. Owner grants always pass.
func (m *Manager) Admit(ctx context.Context, id model.Identity, plan model.Plan, kind model.UsageKind) (Decision, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	c, reset, err := m.load(ctx, id)
	if err != nil {
		return Decision{}, err
	}

	if m.grants.Active(id) {
		c.Increment(kind)
		if err := m.usage.Put(ctx, id, c); err != nil {
			return Decision{}, err
		}
		metrics.Admissions.WithLabelValues(string(kind), "owner").Inc()
		return Decision{Allowed: true, Remaining: model.Unbounded, Limit: model.Unbounded, Owner: true}, nil
	}

	limit := plan.Limit(kind)
	if limit == model.Unbounded {
		c.Increment(kind)
		if err := m.usage.Put(ctx, id, c); err != nil {
			return Decision{}, err
		}
		metrics.Admissions.WithLabelValues(string(kind), "allowed").Inc()
		return Decision{Allowed: true, Remaining: model.Unbounded, Limit: model.Unbounded}, nil
	}

	if c.Count(kind)+1 > limit {
		// Persist only the rollover so a stale day is not re-read tomorrow.
		if reset {
			if err := m.usage.Put(ctx, id, c); err != nil {
				return Decision{}, err
			}
		}
		metrics.Admissions.WithLabelValues(string(kind), "rejected").Inc()
		m.log.Debug().Str("identity", string(id)).Str("kind", string(kind)).Int("limit", limit).Msg("quota exceeded")
		return Decision{Allowed: false, Remaining: 0, Limit: limit}, nil
	}

	c.Increment(kind)
	if err := m.usage.Put(ctx, id, c); err != nil {
		return Decision{}, err
	}
	metrics.Admissions.WithLabelValues(string(kind), "allowed").Inc()
	return Decision{Allowed: true, Remaining: limit - c.Count(kind), Limit: limit}, nil
}

// Usage returns today's counter for id without modifying it.
func (m *Manager) Usage(ctx context.Context, id model.Identity) (model.UsageCounter, error) {
	c, _, err := m.load(ctx, id)
	if err != nil {
		return model.UsageCounter{}, err
	}
	return *c, nil
}

// Delay samples the artificial response delay for id under plan, uniformly
// from [DelayMin, DelayMax]. Owner grants and the unlimited plan get zero.
func (m *Manager) Delay(id model.Identity, plan model.Plan) time.Duration {
	if m.grants.Active(id) || plan.IsUnlimited() || plan.DelayMax <= 0 {
		return 0
	}
	span := int64(plan.DelayMax - plan.DelayMin)
	if span <= 0 {
		return plan.DelayMin
	}
	return plan.DelayMin + time.Duration(m.sample(span+1))
}

// Wait blocks the calling request for d or until ctx is done. Other requests
// are unaffected.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
