// Package refresh keeps a fresh snapshot of the order store by polling it on
// an interval and republishing each new snapshot to local consumers.
package refresh

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/model"
	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/rs/zerolog"
)

const DefaultInterval = 5 * time.Second

// ErrSuperseded is returned by Refresh when a newer poll started before this
// one finished. Its result is discarded.
var ErrSuperseded = errors.New("poll superseded by a newer one")

// Snapshot is an immutable point-in-time copy of the store. Consumers must
// treat Orders as read-only since the same slice is shared by every reader.
type Snapshot struct {
	Generation uint64          `json:"generation"`
	Orders     []model.Order   `json:"orders"`
	Catalog    catalog.Catalog `json:"-"`
	FetchedAt  time.Time       `json:"fetched_at"`
}

// State describes polling health for display next to the data.
type State struct {
	Generation          uint64    `json:"generation"`
	InFlight            bool      `json:"in_flight"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	NextAttempt         time.Time `json:"next_attempt"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Stale reports whether the last poll failed and the snapshot is old.
func (s State) Stale() bool { return s.ConsecutiveFailures > 0 }

// Source fetches a full snapshot.
type Source interface {
	Fetch(ctx context.Context) (Snapshot, error)
}

// Observer is told about poll outcomes. Satisfied by *metrics.Metrics.
type Observer interface {
	PollCompleted(d time.Duration, err error)
	PollDiscarded()
}

// Controller polls a Source and fans snapshots out to subscribers.
type Controller struct {
	source   Source
	interval time.Duration
	log      zerolog.Logger
	observer Observer
	now      func() time.Time

	nudge chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	snap    Snapshot
	hasSnap bool
	state   State
	subs    map[int]chan Snapshot
	nextSub int
}

// New creates a Controller. interval <= 0 uses DefaultInterval.
func New(source Source, interval time.Duration, log zerolog.Logger) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "refresh").Logger(),
		now:      time.Now,
		nudge:    make(chan struct{}, 1),
		subs:     make(map[int]chan Snapshot),
	}
}

// SetObserver registers an observer for poll outcomes. Call before Run.
func (c *Controller) SetObserver(o Observer) {
	c.observer = o
}

// Run polls immediately, then on every interval tick and on every Nudge,
// until ctx is done. A poll still running when the next one starts is
// cancelled so at most one is ever in flight.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.startPoll(ctx)
	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			return nil
		case <-ticker.C:
			c.startPoll(ctx)
		case <-c.nudge:
			c.startPoll(ctx)
		}
	}
}

// Nudge requests an immediate poll. Repeated nudges before Run picks one up
// collapse into a single poll.
func (c *Controller) Nudge() {
	select {
	case c.nudge <- struct{}{}:
	default:
	}
}

// OrderChanged nudges the controller after a local mutation so this
// terminal's views catch up without waiting for the next tick.
func (c *Controller) OrderChanged(ctx context.Context, ev service.Event) {
	c.Nudge()
}

func (c *Controller) startPoll(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) && ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("poll failed, keeping last snapshot")
		}
	}()
}

// Refresh runs one poll synchronously. It supersedes any poll in flight.
func (c *Controller) Refresh(ctx context.Context) error {
	gen, pctx, cancel := c.begin(ctx)
	defer cancel()

	start := c.now()
	snap, err := c.source.Fetch(pctx)
	return c.complete(gen, start, snap, err)
}

func (c *Controller) begin(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	pctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state.InFlight = true
	c.state.LastAttempt = c.now()
	return c.gen, pctx, cancel
}

func (c *Controller) complete(gen uint64, start time.Time, snap Snapshot, err error) error {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.Debug().Uint64("generation", gen).Msg("discarding stale poll result")
		if c.observer != nil {
			c.observer.PollDiscarded()
		}
		return ErrSuperseded
	}

	now := c.now()
	c.cancel = nil
	c.state.Generation = gen
	c.state.InFlight = false
	c.state.NextAttempt = now.Add(c.interval)

	if err != nil {
		c.state.ConsecutiveFailures++
		c.state.LastError = err.Error()
		c.mu.Unlock()
		if c.observer != nil {
			c.observer.PollCompleted(now.Sub(start), err)
		}
		return err
	}

	snap.Generation = gen
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = now
	}
	c.snap = snap
	c.hasSnap = true
	c.state.ConsecutiveFailures = 0
	c.state.LastError = ""
	c.state.LastSuccess = now
	for _, ch := range c.subs {
		deliver(ch, snap)
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.PollCompleted(now.Sub(start), nil)
	}
	return nil
}

// Current returns the last good snapshot and the polling state. ok is false
// until the first poll succeeds.
func (c *Controller) Current() (snap Snapshot, state State, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.state, c.hasSnap
}

// State returns the polling state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving each new snapshot. Delivery is
// latest-wins: a slow reader only ever sees the newest unread snapshot.
// The current snapshot, if any, is delivered immediately.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	if c.hasSnap {
		ch <- c.snap
	}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// deliver replaces any unread snapshot with snap. Only called with c.mu
// held, so there is a single sender per channel.
func deliver(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
