// Package stores holds the client-side caches of server resources. Each
// store owns one slice of state, tracks in-flight requests and discards
// responses that were superseded by a newer request.
package stores

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// State is the coarse lifecycle of a store
type State int

const (
	StateIdle State = iota
	StateLoading
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshotter persists the last good value of a resource per account
type Snapshotter interface {
	Save(ctx context.Context, accountEmail, resource string, v any) error
	Load(ctx context.Context, accountEmail, resource string, v any) (bool, error)
}

const snapshotTimeout = 2 * time.Second

// Resource is a mutex-guarded cached value with request sequencing. Only the
// response to the most recently issued request is applied.
type Resource[T any] struct {
	mu       sync.Mutex
	name     string
	value    T
	loaded   bool
	inFlight int
	issued   uint64
	gen      uint64
	lastErr  error
	clone    func(T) T

	subs   map[int]func()
	nextID int

	snapshots Snapshotter
	account   func() string
	logger    *log.Logger
}

// NewResource creates an empty resource. clone copies values handed out to
// readers; nil means T is copied by assignment.
func NewResource[T any](name string, clone func(T) T) *Resource[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Resource[T]{
		name:  name,
		clone: clone,
		subs:  map[int]func(){},
	}
}

// SetLogger sets the logger
func (r *Resource[T]) SetLogger(logger *log.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetSnapshots enables write-back of every applied value for the account
// returned by account.
func (r *Resource[T]) SetSnapshots(s Snapshotter, account func() string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = s
	r.account = account
}

// Name identifies the resource in logs and snapshots
func (r *Resource[T]) Name() string {
	return r.name
}

// Value returns a copy of the cached value
func (r *Resource[T]) Value() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clone(r.value)
}

// Loaded reports whether a value was ever applied or hydrated
func (r *Resource[T]) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Loading reports whether at least one request is in flight
func (r *Resource[T]) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight > 0
}

// LastError is the error of the latest failed request, cleared on success
func (r *Resource[T]) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// State derives the lifecycle state
func (r *Resource[T]) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.inFlight > 0:
		return StateLoading
	case r.lastErr != nil:
		return StateError
	default:
		return StateIdle
	}
}

// Subscribe calls fn after every change. The returned func unsubscribes.
func (r *Resource[T]) Subscribe(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Hold marks the resource loading until the returned func is called. It
// does not take a sequence number.
func (r *Resource[T]) Hold() func() {
	r.mu.Lock()
	r.inFlight++
	r.mu.Unlock()
	r.notify()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.inFlight--
			r.mu.Unlock()
			r.notify()
		})
	}
}

// Load runs fetch as a new request. On success the value is replaced unless
// a newer request was issued meanwhile; on failure the value is kept and the
// error recorded. fresh reports whether this request was still the latest
// when it resolved.
func (r *Resource[T]) Load(ctx context.Context, fetch func(context.Context) (T, error)) (fresh bool, err error) {
	r.mu.Lock()
	r.issued++
	r.gen++
	seq := r.issued
	r.inFlight++
	r.mu.Unlock()
	r.notify()

	defer func() {
		r.mu.Lock()
		r.inFlight--
		r.mu.Unlock()
		r.notify()
	}()

	v, err := fetch(ctx)

	r.mu.Lock()
	fresh = seq == r.issued
	if !fresh {
		logger := r.logger
		r.mu.Unlock()
		if logger != nil {
			logger.Printf("%s: discarded response #%d, latest is newer", r.name, seq)
		}
		return false, err
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.lastErr = err
		}
		r.mu.Unlock()
		return true, err
	}
	r.value = v
	r.loaded = true
	r.lastErr = nil
	r.gen++
	r.mu.Unlock()

	r.writeSnapshot(ctx, v)
	return true, nil
}

// Update applies a local change and returns the new value. It does not
// affect request sequencing: a later fetch replaces the local change.
func (r *Resource[T]) Update(fn func(T) T) T {
	r.mu.Lock()
	r.value = fn(r.clone(r.value))
	out := r.clone(r.value)
	r.mu.Unlock()
	r.notify()
	return out
}

// Apply is Update for optimistic changes. It returns the generation the
// change was applied at, for a later UpdateAt rollback.
func (r *Resource[T]) Apply(fn func(T) T) uint64 {
	r.mu.Lock()
	r.value = fn(r.clone(r.value))
	gen := r.gen
	r.mu.Unlock()
	r.notify()
	return gen
}

// UpdateAt applies fn only if no request, Set, Hydrate or Reset happened
// since generation gen. It reports whether fn was applied.
func (r *Resource[T]) UpdateAt(gen uint64, fn func(T) T) bool {
	r.mu.Lock()
	if cur := r.gen; cur != gen {
		logger := r.logger
		r.mu.Unlock()
		if logger != nil {
			logger.Printf("%s: skipped stale local change, generation %d is now %d", r.name, gen, cur)
		}
		return false
	}
	r.value = fn(r.clone(r.value))
	r.mu.Unlock()
	r.notify()
	return true
}

// Generation changes whenever the value is replaced or a request is issued
func (r *Resource[T]) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// Set replaces the value without a request
func (r *Resource[T]) Set(v T) {
	r.mu.Lock()
	r.value = v
	r.loaded = true
	r.gen++
	r.mu.Unlock()
	r.notify()
}

// Hydrate loads the persisted snapshot when nothing was loaded yet
func (r *Resource[T]) Hydrate(ctx context.Context) (bool, error) {
	r.mu.Lock()
	snaps, account, loaded := r.snapshots, r.account, r.loaded
	r.mu.Unlock()
	if snaps == nil || account == nil || loaded {
		return false, nil
	}
	email := account()
	if email == "" {
		return false, nil
	}

	var v T
	found, err := snaps.Load(ctx, email, r.name, &v)
	if err != nil || !found {
		return false, err
	}

	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return false, nil
	}
	r.value = v
	r.loaded = true
	r.gen++
	r.mu.Unlock()
	r.notify()
	return true, nil
}

// Reset clears value and error; in-flight responses are discarded
func (r *Resource[T]) Reset() {
	r.mu.Lock()
	var zero T
	r.value = zero
	r.loaded = false
	r.lastErr = nil
	r.issued++
	r.gen++
	r.mu.Unlock()
	r.notify()
}

func (r *Resource[T]) writeSnapshot(ctx context.Context, v T) {
	r.mu.Lock()
	snaps, account, logger := r.snapshots, r.account, r.logger
	r.mu.Unlock()
	if snaps == nil || account == nil {
		return
	}
	email := account()
	if email == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()
	if err := snaps.Save(ctx, email, r.name, v); err != nil && logger != nil {
		logger.Printf("%s: snapshot write failed: %v", r.name, err)
	}
}

func (r *Resource[T]) notify() {
	r.mu.Lock()
	subs := make([]func(), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func cloneSlice[E any](s []E) []E {
	if s == nil {
		return nil
	}
	out := make([]E, len(s))
	copy(out, s)
	return out
}
