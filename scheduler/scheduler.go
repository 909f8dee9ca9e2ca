// Package scheduler drives the backend's periodic and one-shot work: a
// single ticker advances an ordered set of Executors once every tick,
// handing each one the current wall-clock time and the elapsed delta.
// Grounded on original_source/src/backend/interval.py, which keeps the
// same four executor kinds (Timed/Deferred/Unix/Daily) under one
// scheduler loop.
package scheduler

import (
	"sync"
	"time"

	"github.com/joanet/controlplane/logger"
)

// TickInterval is the fixed period between scheduler ticks.
const TickInterval = 200 * time.Millisecond

// Executor is one entry in the scheduler's ordered tick set.
type Executor interface {
	// ID identifies this executor for removal; it must be unique within
	// a single Scheduler.
	ID() string
	// Tick advances the executor's internal state by dt given the
	// current wall-clock time t, firing its callback at most once.
	// Returns true if the executor should be removed after this tick
	// (Deferred and Unix executors are single-shot).
	Tick(t time.Time, dt time.Duration) (done bool)
}

// Scheduler runs a single background ticker and advances an ordered,
// duplicate-free set of Executors on every tick. Callback invocation is
// synchronous on the ticker goroutine: a callback that blocks stalls
// every other executor's next tick, so long-running callbacks must
// self-dispatch (e.g. via the worker package).
type Scheduler struct {
	mu        sync.Mutex
	order     []string
	executors map[string]Executor
	lastTick  time.Time

	stopCh chan struct{}
	once   sync.Once
	log    *logger.Logger
}

// New creates a Scheduler. It does not start ticking until Start is
// called.
func New(log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}
	return &Scheduler{
		executors: make(map[string]Executor),
		stopCh:    make(chan struct{}),
		log:       log,
	}
}

// Register adds executor to the tick set in insertion order. Registering
// an ID that already exists replaces the previous executor at its
// original position, so IDs never duplicate.
func (s *Scheduler) Register(e Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executors[e.ID()]; !exists {
		s.order = append(s.order, e.ID())
	}
	s.executors[e.ID()] = e
}

// Unregister removes the executor with the given ID, if present.
func (s *Scheduler) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *Scheduler) removeLocked(id string) {
	if _, ok := s.executors[id]; !ok {
		return
	}
	delete(s.executors, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len reports how many executors are currently registered.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Start begins the background ticker. It is non-blocking; call Stop to
// terminate it.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.lastTick = time.Now()
	s.mu.Unlock()

	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick advances every registered executor once, in insertion order,
// removing any that report completion.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	dt := now.Sub(s.lastTick)
	s.lastTick = now
	ids := append([]string(nil), s.order...)
	s.mu.Unlock()

	var finished []string
	for _, id := range ids {
		s.mu.Lock()
		e, ok := s.executors[id]
		s.mu.Unlock()
		if !ok {
			continue
		}

		done := s.runExecutor(e, now, dt)
		if done {
			finished = append(finished, id)
		}
	}

	if len(finished) > 0 {
		s.mu.Lock()
		for _, id := range finished {
			s.removeLocked(id)
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) runExecutor(e Executor, now time.Time, dt time.Duration) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("scheduler executor %q panicked: %v", e.ID(), r)
		}
	}()
	return e.Tick(now, dt)
}

// Stop halts the ticker. It does not wait for an in-flight tick to
// finish. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}
