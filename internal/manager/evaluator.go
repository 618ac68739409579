package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/errors"
)

// EvaluateResult summarizes one evaluator tick.
type EvaluateResult struct {
	Checked int      `json:"checked"`
	Flipped []string `json:"flipped"`
	Skipped []string `json:"skipped"`
}

// Evaluate runs one evaluator tick at now: every scheduled capsule whose
// target instant is at or before now becomes due with DueAt = now.
// A capsule that cannot be evaluated is logged and skipped; the others still
// make progress. Only a failure to read the collection is returned.
func (m *Manager) Evaluate(ctx context.Context, now time.Time) (*EvaluateResult, error) {
	now = now.In(m.loc)
	result := &EvaluateResult{Flipped: []string{}, Skipped: []string{}}

	m.mu.Lock()
	pending, err := m.store.ListPending(ctx)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	flipped := make([]*capsule.Capsule, 0)
	for _, c := range pending {
		if ctx.Err() != nil {
			break
		}
		result.Checked++

		ok, err := m.evaluateOne(ctx, c, now)
		if err != nil {
			m.log.Warn("skipping capsule in evaluator tick", "id", c.ID, "error", err)
			result.Skipped = append(result.Skipped, c.ID)
			continue
		}
		if ok {
			flipped = append(flipped, c)
			result.Flipped = append(result.Flipped, c.ID)
		}
	}
	m.mu.Unlock()

	for _, c := range flipped {
		m.log.Info("capsule due", "id", c.ID, "due_at", now.Format(time.RFC3339))
		if m.onDue != nil {
			m.onDue(c)
		}
	}

	if ctx.Err() != nil {
		return result, errors.NewCancelled("evaluate")
	}
	return result, nil
}

// evaluateOne flips c if due. Panics are turned into errors so one bad
// capsule cannot abort the tick.
func (m *Manager) evaluateOne(ctx context.Context, c *capsule.Capsule, now time.Time) (flipped bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	target, err := c.Target(m.loc)
	if err != nil {
		return false, err
	}
	if now.Before(target) {
		return false, nil
	}

	flipped, err = m.store.MarkDue(ctx, c.ID, now)
	if err != nil {
		return false, err
	}
	if flipped {
		c.Due = true
		at := now
		c.DueAt = &at
	}
	return flipped, nil
}

// Start launches the evaluator loop. It evaluates once immediately and then
// on every tick of the manager's clock until ctx is cancelled or Stop is
// called. Starting a running evaluator is a CONFLICT.
func (m *Manager) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.runningLocked() {
		return errors.NewConflict("evaluator already running")
	}
	if m.cancel != nil {
		m.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	ticker := m.clock.NewTicker(m.interval)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go m.run(runCtx, ticker, done)

	m.log.Debug("evaluator started", "interval", m.interval.String())
	return nil
}

func (m *Manager) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	if _, err := m.Evaluate(ctx, m.clock.Now()); err != nil && !errors.Is(err, errors.ErrCancelled) {
		m.log.Error("evaluator tick failed", "error", err)
	}
}

// Stop cancels the evaluator and waits for the loop to exit. It is safe to
// call when the evaluator is not running.
func (m *Manager) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.done == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
	m.done = nil
	m.log.Debug("evaluator stopped")
}

// Running reports whether the evaluator loop is active.
func (m *Manager) Running() bool {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.runningLocked()
}

// runningLocked also treats a loop that exited because its parent context
// was cancelled as stopped.
func (m *Manager) runningLocked() bool {
	if m.done == nil {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}
