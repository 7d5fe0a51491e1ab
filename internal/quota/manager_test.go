package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshite737-crypto/haste/internal/model"
	"github.com/harshite737-crypto/haste/internal/plans"
	"github.com/harshite737-crypto/haste/internal/session"
	"github.com/harshite737-crypto/haste/internal/store"
	"github.com/harshite737-crypto/haste/internal/store/memstore"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newManager(t *testing.T) (*Manager, store.Store, *session.Grants, *clock) {
	t.Helper()
	st := memstore.New()
	g := session.NewGrants()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(st.Usage(), g, zerolog.Nop(), WithClock(clk.Now)), st, g, clk
}

func TestAdmit_ExactlyLimitPerDay(t *testing.T) {
	for _, plan := range plans.Defaults {
		if plan.MessagesPerDay == model.Unbounded {
			continue
		}
		t.Run(plan.Name, func(t *testing.T) {
			m, _, _, _ := newManager(t)
			ctx := context.Background()
			for n := 1; n <= plan.MessagesPerDay; n++ {
				d, err := m.Admit(ctx, "u1", plan, model.KindMessage)
				require.NoError(t, err)
				require.Truef(t, d.Allowed, "message %d of %d rejected", n, plan.MessagesPerDay)
				require.Equal(t, plan.MessagesPerDay-n, d.Remaining)
			}
			d, err := m.Admit(ctx, "u1", plan, model.KindMessage)
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, plan.MessagesPerDay, d.Limit)
		})
	}
}

func TestAdmit_RejectionDoesNotMutateCounter(t *testing.T) {
	m, st, _, _ := newManager(t)
	ctx := context.Background()
	plan := model.Plan{Name: "tiny", MessagesPerDay: 1, MediaPerDay: 0}

	d, err := m.Admit(ctx, "u1", plan, model.KindMessage)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	for i := 0; i < 3; i++ {
		d, err = m.Admit(ctx, "u1", plan, model.KindMessage)
		require.NoError(t, err)
		require.False(t, d.Allowed)
	}
	c, err := st.Usage().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.MessageCount)

	d, err = m.Admit(ctx, "u1", plan, model.KindMedia)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "zero media limit admits nothing")
}

func TestAdmit_KindsCountedSeparately(t *testing.T) {
	m, st, _, _ := newManager(t)
	ctx := context.Background()
	plan := model.Plan{Name: "p", MessagesPerDay: 5, MediaPerDay: 1}

	_, err := m.Admit(ctx, "u1", plan, model.KindMessage)
	require.NoError(t, err)
	d, err := m.Admit(ctx, "u1", plan, model.KindMedia)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = m.Admit(ctx, "u1", plan, model.KindMedia)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	c, err := st.Usage().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.MessageCount)
	assert.Equal(t, 1, c.MediaCount)
}

func TestAdmit_DayRolloverResets(t *testing.T) {
	m, st, _, clk := newManager(t)
	ctx := context.Background()
	plan := model.Plan{Name: "p", MessagesPerDay: 2, MediaPerDay: 2}

	for i := 0; i < 2; i++ {
		_, err := m.Admit(ctx, "u1", plan, model.KindMessage)
		require.NoError(t, err)
	}
	d, err := m.Admit(ctx, "u1", plan, model.KindMessage)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	clk.Advance(24 * time.Hour)
	d, err = m.Admit(ctx, "u1", plan, model.KindMessage)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	c, err := st.Usage().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-02", c.Day)
}

func TestUsage_StaleCounterReadsAsZero(t *testing.T) {
	m, st, _, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, st.Usage().Put(ctx, "u1", &model.UsageCounter{Day: "1999-12-31", MessageCount: 77, MediaCount: 9}))

	c, err := m.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, c.MessageCount)
	assert.Equal(t, 0, c.MediaCount)
	assert.Equal(t, "2024-05-01", c.Day)
}

func TestAdmit_OwnerGrantBypassesLimit(t *testing.T) {
	m, _, g, _ := newManager(t)
	ctx := context.Background()
	plan := model.Plan{Name: "p", MessagesPerDay: 1}
	g.Grant("u1")

	for i := 0; i < 1000; i++ {
		d, err := m.Admit(ctx, "u1", plan, model.KindMessage)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.True(t, d.Owner)
	}
}

func TestAdmit_UnboundedPlan(t *testing.T) {
	m, _, _, _ := newManager(t)
	ctx := context.Background()
	plan := model.Plan{Name: model.PlanUnlimited, MessagesPerDay: model.Unbounded, MediaPerDay: model.Unbounded}
	for i := 0; i < 200; i++ {
		d, err := m.Admit(ctx, "u1", plan, model.KindMedia)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		require.Equal(t, model.Unbounded, d.Remaining)
	}
}

func TestAdmit_ConcurrentSameIdentity(t *testing.T) {
	m, _, _, _ := newManager(t)
	ctx := context.Background()
	plan := model.Plan{Name: "p", MessagesPerDay: 50}

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 120; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := m.Admit(ctx, "u1", plan, model.KindMessage)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, allowed.Load())
	assert.Equal(t, 0, m.locks.size(), "idle identities must not retain locks")
}

func TestDelay(t *testing.T) {
	st := memstore.New()
	g := session.NewGrants()
	// sampler returning n-1 yields the top of the range
	m := NewManager(st.Usage(), g, zerolog.Nop(), WithSampler(func(n int64) int64 { return n - 1 }))
	plan := model.Plan{Name: "free", DelayMin: time.Second, DelayMax: 3 * time.Second}

	assert.Equal(t, 3*time.Second, m.Delay("u1", plan))

	m = NewManager(st.Usage(), g, zerolog.Nop(), WithSampler(func(int64) int64 { return 0 }))
	assert.Equal(t, time.Second, m.Delay("u1", plan))

	g.Grant("u1")
	assert.Zero(t, m.Delay("u1", plan))
	assert.Zero(t, m.Delay("u2", model.Plan{Name: model.PlanUnlimited}))
}

func TestDelay_DefaultSamplerWithinRange(t *testing.T) {
	m, _, _, _ := newManager(t)
	plan := model.Plan{Name: "free", DelayMin: 10 * time.Millisecond, DelayMax: 20 * time.Millisecond}
	for i := 0; i < 100; i++ {
		d := m.Delay("u1", plan)
		require.GreaterOrEqual(t, d, plan.DelayMin)
		require.LessOrEqual(t, d, plan.DelayMax)
	}
}

func TestWait_ScopedToRequest(t *testing.T) {
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Wait(context.Background(), 50*time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Less(t, time.Since(start), 400*time.Millisecond, "waits must overlap, not serialise")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Wait(ctx, time.Hour), context.Canceled)
}
