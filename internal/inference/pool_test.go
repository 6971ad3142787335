package inference_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LiboWorks/bitrag/internal/inference"
	bitragtesting "github.com/LiboWorks/bitrag/internal/testing"
)

func newPool(t *testing.T, eng *bitragtesting.FakeEngine, minSize, maxSize int, timeout time.Duration) *inference.Pool {
	t.Helper()
	m := loadModel(t, eng)
	p, err := inference.NewPool(m, smallParams(), inference.PoolConfig{
		MinSize:        minSize,
		MaxSize:        maxSize,
		AcquireTimeout: timeout,
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func assertInvariant(t *testing.T, p *inference.Pool) {
	t.Helper()
	s := p.Stats()
	assert.Equal(t, s.Size, s.Available+s.InUse, "available + in use must equal size: %+v", s)
	assert.LessOrEqual(t, s.Size, s.MaxSize)
}

func TestPoolConfigValidate(t *testing.T) {
	assert.ErrorIs(t, inference.PoolConfig{MinSize: 0, MaxSize: 0}.Validate(), inference.ErrInvalidConfig)
	assert.ErrorIs(t, inference.PoolConfig{MinSize: 3, MaxSize: 2}.Validate(), inference.ErrInvalidConfig)
	assert.NoError(t, inference.DefaultPoolConfig().Validate())
}

func TestNewPoolPrewarms(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	p := newPool(t, eng, 2, 4, time.Second)

	s := p.Stats()
	assert.Equal(t, 2, s.Size)
	assert.Equal(t, 2, s.Available)
	assert.Equal(t, 0, s.InUse)
	assert.Equal(t, int32(2), eng.ContextsCreated.Load())
	assert.True(t, p.CanGrow())
}

func TestNewPoolWarmupFailureFreesContexts(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	eng.ContextFailAfter = 2
	m := loadModel(t, eng)

	_, err := inference.NewPool(m, smallParams(), inference.PoolConfig{MinSize: 3, MaxSize: 3})
	require.ErrorIs(t, err, inference.ErrContextCreation)
	assert.Equal(t, int32(2), eng.ContextsFreed.Load())
}

func TestTryAcquireGrowsToMax(t *testing.T) {
	p := newPool(t, bitragtesting.NewFakeEngine(""), 0, 2, time.Second)
	assert.Equal(t, 0, p.Size())

	g1, ok := p.TryAcquire()
	require.True(t, ok)
	g2, ok := p.TryAcquire()
	require.True(t, ok)
	assert.Equal(t, 2, p.Size())
	assert.False(t, p.CanGrow())
	assertInvariant(t, p)

	_, ok = p.TryAcquire()
	assert.False(t, ok)

	g1.Release()
	g1.Release()
	g2.Release()
	assert.Equal(t, 2, p.Available())
	assertInvariant(t, p)
}

func TestAcquireTimesOut(t *testing.T) {
	timeout := 150 * time.Millisecond
	p := newPool(t, bitragtesting.NewFakeEngine(""), 1, 1, timeout)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = p.Acquire(context.Background())
	elapsed := time.Since(start)

	var timeoutErr *inference.PoolTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.ErrorIs(t, err, inference.ErrPoolTimeout)
	assert.True(t, inference.IsRetryable(err))
	assert.Equal(t, "timeout", inference.Stage(err))
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+time.Second)
}

func TestAcquireWakesOnRelease(t *testing.T) {
	p := newPool(t, bitragtesting.NewFakeEngine(""), 1, 1, 5*time.Second)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		held.Release()
	}()

	g, err := p.Acquire(context.Background())
	require.NoError(t, err)
	g.Release()
}

func TestAcquireCancelled(t *testing.T) {
	p := newPool(t, bitragtesting.NewFakeEngine(""), 1, 1, 5*time.Second)
	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, inference.ErrInterrupted)
	assert.False(t, inference.IsRetryable(err))
	assert.Equal(t, "interrupted", inference.Stage(err))
}

func TestReleaseClearsCache(t *testing.T) {
	p := newPool(t, bitragtesting.NewFakeEngine(""), 1, 1, time.Second)

	g, err := p.Acquire(context.Background())
	require.NoError(t, err)
	decodePrompt(t, g.Context(), "leftover state")
	g.Release()

	g, err = p.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()
	assert.Equal(t, 0, g.Context().Pos())
	decodePrompt(t, g.Context(), "fresh")
}

func TestReleaseAfterFailedWork(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	p := newPool(t, eng, 1, 1, time.Second)

	work := func() (err error) {
		g, err := p.Acquire(context.Background())
		if err != nil {
			return err
		}
		defer g.Release()
		decodePrompt(t, g.Context(), "partial")
		panic("boom")
	}
	assert.Panics(t, func() { _ = work() })

	g, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer g.Release()
	decodePrompt(t, g.Context(), "after failure")
	assertInvariant(t, p)
}

func TestGrowthFailureRollsBack(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	eng.ContextFailAfter = 1
	p := newPool(t, eng, 1, 3, 80*time.Millisecond)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	_, ok := p.TryAcquire()
	assert.False(t, ok)
	assert.Equal(t, 1, p.Size())
	assert.True(t, p.CanGrow())
	assertInvariant(t, p)

	_, err = p.Acquire(context.Background())
	var timeoutErr *inference.PoolTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Error(t, timeoutErr.LastErr)
	assert.Contains(t, err.Error(), "last growth error")
}

func TestPoolInvariantUnderConcurrency(t *testing.T) {
	p := newPool(t, bitragtesting.NewFakeEngine(""), 1, 3, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := p.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			assertInvariant(t, p)
			time.Sleep(2 * time.Millisecond)
			g.Release()
		}()
	}
	wg.Wait()

	s := p.Stats()
	assert.LessOrEqual(t, s.Size, 3)
	assert.Equal(t, 0, s.InUse)
	assert.Equal(t, s.Size, s.Available)
}

func TestCloseWakesWaitersAndFreesBorrowed(t *testing.T) {
	eng := bitragtesting.NewFakeEngine("")
	p := newPool(t, eng, 1, 1, 5*time.Second)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errc <- err
	}()
	time.Sleep(30 * time.Millisecond)
	p.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, inference.ErrPoolClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken by Close")
	}

	held.Release()
	assert.Equal(t, int32(1), eng.ContextsFreed.Load())
	assert.Equal(t, 0, p.Size())

	_, ok := p.TryAcquire()
	assert.False(t, ok)
}
