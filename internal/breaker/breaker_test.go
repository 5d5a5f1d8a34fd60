package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := New(Config{Now: clock.Now})
	return reg, clock
}

func TestRegistry_InitialClosed(t *testing.T) {
	reg, _ := newTestRegistry()

	assert.True(t, reg.CanExecute("svc"))
	snap := reg.State("svc")
	assert.Equal(t, StateClosed, snap.State)
	assert.Zero(t, snap.FailureCount)
}

func TestRegistry_OpensAtThreshold(t *testing.T) {
	reg, clock := newTestRegistry()

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		reg.OnFailure("svc")
		assert.True(t, reg.CanExecute("svc"), "failure %d must not open", i+1)
	}

	reg.OnFailure("svc")
	snap := reg.State("svc")
	require.Equal(t, StateOpen, snap.State)
	assert.Equal(t, clock.Now().Add(DefaultResetTimeout), snap.RetryAfter)
	assert.False(t, reg.CanExecute("svc"))

	clock.Advance(DefaultResetTimeout - time.Second)
	assert.False(t, reg.CanExecute("svc"))
}

func TestRegistry_HalfOpenAllowsExactlyOneTrial(t *testing.T) {
	reg, clock := newTestRegistry()
	for i := 0; i < DefaultFailureThreshold; i++ {
		reg.OnFailure("svc")
	}

	clock.Advance(DefaultResetTimeout)

	assert.True(t, reg.CanExecute("svc"))
	assert.Equal(t, StateHalfOpen, reg.State("svc").State)
	assert.False(t, reg.CanExecute("svc"))
	assert.False(t, reg.CanExecute("svc"))
}

func TestRegistry_TrialSuccessCloses(t *testing.T) {
	reg, clock := newTestRegistry()
	for i := 0; i < DefaultFailureThreshold; i++ {
		reg.OnFailure("svc")
	}
	clock.Advance(DefaultResetTimeout)
	require.True(t, reg.CanExecute("svc"))

	reg.OnSuccess("svc")

	snap := reg.State("svc")
	assert.Equal(t, StateClosed, snap.State)
	assert.Zero(t, snap.FailureCount)
	assert.True(t, reg.CanExecute("svc"))
	assert.True(t, reg.CanExecute("svc"))
}

func TestRegistry_ReleaseRegrantsTrial(t *testing.T) {
	reg, clock := newTestRegistry()
	for i := 0; i < DefaultFailureThreshold; i++ {
		reg.OnFailure("svc")
	}
	clock.Advance(DefaultResetTimeout)
	require.True(t, reg.CanExecute("svc"))
	require.False(t, reg.CanExecute("svc"))

	reg.Release("svc")

	assert.Equal(t, StateHalfOpen, reg.State("svc").State)
	assert.True(t, reg.CanExecute("svc"))
	assert.False(t, reg.CanExecute("svc"))
}

func TestRegistry_ReleaseIgnoredOutsideHalfOpen(t *testing.T) {
	reg, _ := newTestRegistry()
	for i := 0; i < DefaultFailureThreshold; i++ {
		reg.OnFailure("svc")
	}

	reg.Release("svc")

	assert.Equal(t, StateOpen, reg.State("svc").State)
	assert.False(t, reg.CanExecute("svc"))
}

func TestRegistry_TrialFailureReopens(t *testing.T) {
	reg, clock := newTestRegistry()
	for i := 0; i < DefaultFailureThreshold; i++ {
		reg.OnFailure("svc")
	}
	clock.Advance(DefaultResetTimeout)
	require.True(t, reg.CanExecute("svc"))

	reg.OnFailure("svc")

	snap := reg.State("svc")
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, clock.Now().Add(DefaultResetTimeout), snap.RetryAfter)
	assert.False(t, reg.CanExecute("svc"))
}

func TestRegistry_SuccessResetsCount(t *testing.T) {
	reg, _ := newTestRegistry()

	for i := 0; i < DefaultFailureThreshold-1; i++ {
		reg.OnFailure("svc")
	}
	reg.OnSuccess("svc")
	for i := 0; i < DefaultFailureThreshold-1; i++ {
		reg.OnFailure("svc")
	}

	assert.Equal(t, StateClosed, reg.State("svc").State)
	assert.True(t, reg.CanExecute("svc"))
}

func TestRegistry_ServicesAreIndependent(t *testing.T) {
	reg, _ := newTestRegistry()
	for i := 0; i < DefaultFailureThreshold; i++ {
		reg.OnFailure("a")
	}

	assert.False(t, reg.CanExecute("a"))
	assert.True(t, reg.CanExecute("b"))

	snaps := reg.Snapshot()
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].Service)
	assert.Equal(t, "b", snaps[1].Service)
}

func TestRegistry_ConcurrentTrial(t *testing.T) {
	reg, clock := newTestRegistry()
	for i := 0; i < DefaultFailureThreshold; i++ {
		reg.OnFailure("svc")
	}
	clock.Advance(DefaultResetTimeout)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.CanExecute("svc") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
}
