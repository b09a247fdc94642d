package stores

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gate lets a test hold a fetch open until it decides how it resolves
type gate[T any] struct {
	started chan struct{}
	result  chan T
	err     chan error
}

func newGate[T any]() *gate[T] {
	return &gate[T]{started: make(chan struct{}), result: make(chan T, 1), err: make(chan error, 1)}
}

func (g *gate[T]) fetch(ctx context.Context) (T, error) {
	close(g.started)
	select {
	case v := <-g.result:
		return v, nil
	case err := <-g.err:
		var zero T
		return zero, err
	}
}

func TestResource_LoadingOnlyWhileInFlight(t *testing.T) {
	r := NewResource[[]string]("things", cloneSlice[string])
	assert.False(t, r.Loading())
	assert.Equal(t, StateIdle, r.State())

	g := newGate[[]string]()
	done := make(chan error, 1)
	go func() {
		_, err := r.Load(context.Background(), g.fetch)
		done <- err
	}()

	<-g.started
	assert.True(t, r.Loading())
	assert.Equal(t, StateLoading, r.State())

	g.result <- []string{"a"}
	require.NoError(t, <-done)
	assert.False(t, r.Loading())
	assert.Equal(t, StateIdle, r.State())

	// failure path clears loading too
	g2 := newGate[[]string]()
	go func() {
		_, err := r.Load(context.Background(), g2.fetch)
		done <- err
	}()
	<-g2.started
	assert.True(t, r.Loading())
	g2.err <- errors.New("boom")
	require.Error(t, <-done)
	assert.False(t, r.Loading())
	assert.Equal(t, StateError, r.State())
}

func TestResource_LoadingWithOverlappingRequests(t *testing.T) {
	r := NewResource[int]("n", nil)
	first, second := newGate[int](), newGate[int]()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = r.Load(context.Background(), first.fetch) }()
	<-first.started
	go func() { defer wg.Done(); _, _ = r.Load(context.Background(), second.fetch) }()
	<-second.started

	second.result <- 2
	// the first request is still open
	require.Eventually(t, func() bool { return r.Value() == 2 }, timeout, tick)
	assert.True(t, r.Loading())

	first.result <- 1
	wg.Wait()
	assert.False(t, r.Loading())
}

func TestResource_FailureKeepsValue(t *testing.T) {
	r := NewResource[[]string]("things", cloneSlice[string])
	_, err := r.Load(context.Background(), func(context.Context) ([]string, error) {
		return []string{"kept"}, nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	fresh, err := r.Load(context.Background(), func(context.Context) ([]string, error) {
		return nil, boom
	})
	assert.True(t, fresh)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"kept"}, r.Value())
	assert.ErrorIs(t, r.LastError(), boom)

	// success clears the error
	_, err = r.Load(context.Background(), func(context.Context) ([]string, error) {
		return []string{"new"}, nil
	})
	require.NoError(t, err)
	assert.NoError(t, r.LastError())
}

func TestResource_StaleResponseDiscarded(t *testing.T) {
	r := NewResource[string]("s", nil)
	slow := newGate[string]()

	slowDone := make(chan bool, 1)
	go func() {
		fresh, _ := r.Load(context.Background(), slow.fetch)
		slowDone <- fresh
	}()
	<-slow.started

	fresh, err := r.Load(context.Background(), func(context.Context) (string, error) {
		return "newer", nil
	})
	require.NoError(t, err)
	assert.True(t, fresh)

	slow.result <- "older"
	assert.False(t, <-slowDone)
	assert.Equal(t, "newer", r.Value())
}

func TestResource_StaleFailureNotRecorded(t *testing.T) {
	r := NewResource[string]("s", nil)
	slow := newGate[string]()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Load(context.Background(), slow.fetch)
	}()
	<-slow.started

	_, err := r.Load(context.Background(), func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)

	slow.err <- errors.New("late failure")
	<-done
	assert.NoError(t, r.LastError())
	assert.Equal(t, StateIdle, r.State())
}

func TestResource_CanceledIsNotAnError(t *testing.T) {
	r := NewResource[int]("n", nil)
	_, err := r.Load(context.Background(), func(context.Context) (int, error) {
		return 0, context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, r.LastError())
}

func TestResource_ValueIsCopy(t *testing.T) {
	r := NewResource[[]string]("things", cloneSlice[string])
	r.Set([]string{"a", "b"})

	v := r.Value()
	v[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, r.Value())
}

func TestResource_SubscribeAndHold(t *testing.T) {
	r := NewResource[int]("n", nil)
	var mu sync.Mutex
	calls := 0
	cancel := r.Subscribe(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	release := r.Hold()
	assert.True(t, r.Loading())
	release()
	release()
	assert.False(t, r.Loading())

	cancel()
	r.Set(3)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestResource_ResetDropsInFlight(t *testing.T) {
	r := NewResource[string]("s", nil)
	r.Set("before")
	g := newGate[string]()

	done := make(chan bool, 1)
	go func() {
		fresh, _ := r.Load(context.Background(), g.fetch)
		done <- fresh
	}()
	<-g.started
	r.Reset()
	g.result <- "late"

	assert.False(t, <-done)
	assert.Equal(t, "", r.Value())
	assert.False(t, r.Loaded())
}

type memSnapshots struct {
	mu   sync.Mutex
	data map[string]any
}

func (m *memSnapshots) Save(_ context.Context, account, resource string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]any{}
	}
	m.data[account+"/"+resource] = v
	return nil
}

func (m *memSnapshots) Load(_ context.Context, account, resource string, v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	got, ok := m.data[account+"/"+resource]
	if !ok {
		return false, nil
	}
	*(v.(*[]string)) = got.([]string)
	return true, nil
}

func TestResource_SnapshotWriteBackAndHydrate(t *testing.T) {
	snaps := &memSnapshots{}
	account := func() string { return "ada@example.com" }

	r := NewResource[[]string]("things", cloneSlice[string])
	r.SetSnapshots(snaps, account)
	_, err := r.Load(context.Background(), func(context.Context) ([]string, error) {
		return []string{"cached"}, nil
	})
	require.NoError(t, err)

	restored := NewResource[[]string]("things", cloneSlice[string])
	restored.SetSnapshots(snaps, account)
	ok, err := restored.Hydrate(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"cached"}, restored.Value())

	// hydration never overrides a loaded value
	ok, err = restored.Hydrate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResource_UpdateAtSkipsStaleGeneration(t *testing.T) {
	tests := []struct {
		name    string
		between func(r *Resource[int])
		applied bool
		want    int
	}{
		{"untouched", func(*Resource[int]) {}, true, 11},
		{"local_update", func(r *Resource[int]) { r.Update(func(v int) int { return v + 3 }) }, true, 14},
		{"reset", func(r *Resource[int]) { r.Reset() }, false, 0},
		{"set", func(r *Resource[int]) { r.Set(7) }, false, 7},
		{"load", func(r *Resource[int]) {
			_, _ = r.Load(context.Background(), func(context.Context) (int, error) { return 5, nil })
		}, false, 5},
		{"failed_load", func(r *Resource[int]) {
			_, _ = r.Load(context.Background(), func(context.Context) (int, error) { return 0, errors.New("boom") })
		}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResource[int]("n", nil)
			r.Set(1)
			gen := r.Apply(func(v int) int { return v - 1 })

			tt.between(r)
			assert.Equal(t, tt.applied, r.UpdateAt(gen, func(v int) int { return v + 11 }))
			assert.Equal(t, tt.want, r.Value())
		})
	}
}
