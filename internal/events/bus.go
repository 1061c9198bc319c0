// Package events implements the in-process Event Bus of spec §4.3: a
// typed pub/sub that gates broadcast on durable storage and guarantees
// per-debate ordering to every subscriber.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/an0mium/aragora/internal/aragoraerr"
	"github.com/an0mium/aragora/internal/models"
)

// Appender is the narrow slice of the Storage Adapter the bus needs:
// durable append with a monotone per-debate sequence number assigned
// before the event is considered published (spec §4.3 "durability gate").
type Appender interface {
	AppendEvent(ctx context.Context, e *models.Event) (seq uint64, err error)
}

// Filter selects which events a Subscriber receives.
type Filter struct {
	DebateID string                    // empty matches any debate
	Types    map[models.EventType]bool // nil/empty matches any type
}

func (f Filter) matches(e *models.Event) bool {
	if f.DebateID != "" && e.DebateID != f.DebateID {
		return false
	}
	if len(f.Types) > 0 && !f.Types[e.Type] {
		return false
	}
	return true
}

// Policy controls what happens when a subscriber's queue is full.
type Policy int

const (
	// PolicyBlock never drops; used by the single hot-path consumer the
	// Orchestrator itself cannot tolerate losing (spec: "no-loss on the
	// hot path for the Orchestrator... on overflow it blocks or surfaces
	// an error"). Here it blocks until ctx is done.
	PolicyBlock Policy = iota
	// PolicyDrop drops the event on a full queue; used by best-effort
	// fan-out consumers such as the WebSocket Hub.
	PolicyDrop
)

// Subscriber receives a per-debate-ordered stream of events matching Filter.
type Subscriber struct {
	id     string
	ch     chan *models.Event
	filter Filter
	policy Policy
	mu     sync.Mutex
	closed bool
}

// ID returns the subscriber's identity, usable as a resumption cursor key.
func (s *Subscriber) ID() string { return s.id }

// Events returns the subscriber's receive-only channel.
func (s *Subscriber) Events() <-chan *models.Event { return s.ch }

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *Subscriber) send(ctx context.Context, e *models.Event) (delivered bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	switch s.policy {
	case PolicyDrop:
		select {
		case s.ch <- e:
			return true
		default:
			return false
		}
	default: // PolicyBlock
		select {
		case s.ch <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// Config tunes the bus's buffering and housekeeping.
type Config struct {
	BufferSize      int
	CleanupInterval time.Duration
}

// DefaultConfig mirrors the teacher's DefaultBusConfig defaults.
func DefaultConfig() Config {
	return Config{BufferSize: 1000, CleanupInterval: 30 * time.Second}
}

// Metrics counts bus activity; Snapshot returns a copy of the counters.
type Metrics struct {
	Published         int64
	Delivered         int64
	Dropped           int64
	SubscribersActive int64
}

// Bus is the process-local ordered pub/sub described by spec §4.3.
type Bus struct {
	appender Appender
	config   Config

	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	metrics     Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Bus. appender may be nil only in tests that do not
// need the durability gate; production callers must supply the Storage
// Adapter.
func New(appender Appender, cfg Config) *Bus {
	if cfg.BufferSize <= 0 {
		cfg = DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		appender:    appender,
		config:      cfg,
		subscribers: make(map[string]*Subscriber),
		ctx:         ctx,
		cancel:      cancel,
	}
	go b.cleanupLoop()
	return b
}

// Publish appends e durably (assigning its Seq) and then broadcasts it
// to every matching subscriber. It returns only once the durable append
// has completed; broadcast to individual subscribers best-effort per
// their Policy. This is the Orchestrator's call path and must not
// silently drop the append itself — a storage failure here is fatal to
// the publishing debate (spec §4.3, §7 integrity errors).
func (b *Bus) Publish(ctx context.Context, e *models.Event) error {
	if e == nil {
		return nil
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if b.appender != nil {
		seq, err := b.appender.AppendEvent(ctx, e)
		if err != nil {
			return aragoraerr.Wrap(aragoraerr.CodeIntegrity, "append event", err)
		}
		e.Seq = seq
	}

	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	atomic.AddInt64(&b.metrics.Published, 1)
	for _, s := range subs {
		if !s.filter.matches(e) {
			continue
		}
		if s.send(ctx, e) {
			atomic.AddInt64(&b.metrics.Delivered, 1)
		} else {
			atomic.AddInt64(&b.metrics.Dropped, 1)
		}
	}
	return nil
}

// Subscribe registers a new Subscriber. It takes no cursor: the
// Subscriber receives only events published after it is registered,
// and the Bus offers no replay of earlier events.
func (b *Bus) Subscribe(filter Filter, policy Policy) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		id:     uuid.New().String(),
		ch:     make(chan *models.Event, b.config.BufferSize),
		filter: filter,
		policy: policy,
	}
	b.subscribers[sub.id] = sub
	atomic.AddInt64(&b.metrics.SubscribersActive, 1)
	return sub
}

// Unsubscribe removes and closes a Subscriber.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	_, ok := b.subscribers[sub.id]
	delete(b.subscribers, sub.id)
	b.mu.Unlock()
	if ok {
		sub.close()
		atomic.AddInt64(&b.metrics.SubscribersActive, -1)
	}
}

func (b *Bus) cleanupLoop() {
	ticker := time.NewTicker(b.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			// Subscribers are only ever removed explicitly via
			// Unsubscribe; this loop exists for parity with the
			// teacher's cleanup cadence and future eviction policy
			// (e.g. expiring subscribers whose send has failed N times).
		}
	}
}

// Snapshot returns a point-in-time copy of the bus metrics.
func (b *Bus) Snapshot() Metrics {
	return Metrics{
		Published:         atomic.LoadInt64(&b.metrics.Published),
		Delivered:         atomic.LoadInt64(&b.metrics.Delivered),
		Dropped:           atomic.LoadInt64(&b.metrics.Dropped),
		SubscribersActive: atomic.LoadInt64(&b.metrics.SubscribersActive),
	}
}

// Close shuts down the bus and every subscriber.
func (b *Bus) Close() error {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s)
	}
	b.subscribers = make(map[string]*Subscriber)
	b.mu.Unlock()

	b.cancel()
	for _, s := range subs {
		s.close()
	}
	return nil
}
