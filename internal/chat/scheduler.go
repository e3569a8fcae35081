package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/srmsweets/hrportal/internal/logging"
)

// Task errors.
var (
	ErrTaskAlreadyRunning = errors.New("task already running")
	ErrTaskNotRunning     = errors.New("task not running")
)

// TaskFunc is one run of a scheduled task.
type TaskFunc func(ctx context.Context) error

// TaskStats counts what a task has done since it was created.
type TaskStats struct {
	Runs     uint64
	Skipped  uint64
	Failures uint64
	LastRun  time.Time
	LastErr  error
}

// Task runs a function once on start and then every period until stopped.
// At most one run is in flight: a tick that fires while the previous run
// is still executing is skipped, not queued.
type Task struct {
	name   string
	period time.Duration
	run    TaskFunc
	logger zerolog.Logger

	mu       sync.RWMutex
	running  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight chan struct{}

	statsMu sync.Mutex
	stats   TaskStats
}

// NewTask creates a stopped task.
func NewTask(name string, period time.Duration, run TaskFunc) *Task {
	return &Task{
		name:     name,
		period:   period,
		run:      run,
		logger:   logging.Component("scheduler").With().Str("task", name).Logger(),
		inflight: make(chan struct{}, 1),
	}
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Period returns the tick period.
func (t *Task) Period() time.Duration { return t.period }

// Start launches the loop. The first run happens immediately.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return ErrTaskAlreadyRunning
	}
	if t.period <= 0 {
		return errors.New("task period must be positive")
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	t.running = true

	t.logger.Debug().Dur("period", t.period).Msg("task starting")

	t.wg.Add(1)
	go t.runLoop(t.ctx)
	return nil
}

// Stop cancels the loop and waits for it and any in-flight run to return.
func (t *Task) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return ErrTaskNotRunning
	}
	t.cancel()
	t.running = false
	t.mu.Unlock()

	t.wg.Wait()
	t.logger.Debug().Msg("task stopped")
	return nil
}

// IsRunning returns true if the task is running.
func (t *Task) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// Trigger requests an immediate run outside the tick schedule. It obeys
// the same in-flight guard.
func (t *Task) Trigger() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.running {
		return ErrTaskNotRunning
	}
	t.tick(t.ctx)
	return nil
}

// Stats returns a copy of the counters.
func (t *Task) Stats() TaskStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

func (t *Task) runLoop(ctx context.Context) {
	defer t.wg.Done()

	t.tick(ctx)

	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick starts one run unless another is still executing.
func (t *Task) tick(ctx context.Context) {
	select {
	case t.inflight <- struct{}{}:
	default:
		t.statsMu.Lock()
		t.stats.Skipped++
		t.statsMu.Unlock()
		t.logger.Debug().Msg("previous run still in flight, skipping tick")
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() { <-t.inflight }()
		t.execute(ctx)
	}()
}

func (t *Task) execute(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	err := t.run(ctx)

	t.statsMu.Lock()
	t.stats.Runs++
	t.stats.LastRun = started
	t.stats.LastErr = err
	if err != nil && !errors.Is(err, context.Canceled) {
		t.stats.Failures++
	}
	t.statsMu.Unlock()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		t.logger.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("task run failed")
	}
}
