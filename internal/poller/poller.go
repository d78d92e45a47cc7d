// Package poller drives the watermark poll loop over the message store.
//
// A single poller owns the watermark: a millisecond timestamp initialized
// to process start so historical messages are never replayed, advanced to
// the max timestamp observed each cycle, and passed to the store reader as
// a plain parameter.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/subjective-project/beeper-source/beeper"
)

// State is the poller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Reader is the store read path the poller pulls from. RecentSince returns
// normalized messages newer than the watermark plus the max timestamp over
// all rows observed (including rows skipped for empty text).
type Reader interface {
	RecentSince(watermarkMillis int64, limit int) ([]beeper.Message, int64)
}

// Sink receives each surfaced message, synchronously, in row order
// (newest first within a cycle).
type Sink func(beeper.Message)

// Options configures a Poller.
type Options struct {
	// StorePath is checked for existence before the loop starts.
	StorePath string

	// Interval between poll cycles. Defaults to 1s.
	Interval time.Duration

	// Limit caps rows per cycle. Defaults to 50.
	Limit int

	Log *slog.Logger
}

// Poller polls the store on a fixed interval and forwards normalized
// messages to the sink. One logical poller per process.
type Poller struct {
	reader    Reader
	sink      Sink
	storePath string
	interval  time.Duration
	limit     int
	log       *slog.Logger
	sessionID string

	now func() time.Time

	mu        sync.Mutex
	state     State
	watermark int64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates an idle poller.
func New(reader Reader, sink Sink, opts Options) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	sessionID := uuid.New().String()
	return &Poller{
		reader:    reader,
		sink:      sink,
		storePath: opts.StorePath,
		interval:  interval,
		limit:     limit,
		log:       log.With("session", sessionID),
		sessionID: sessionID,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// SessionID returns the unique ID of this poller instance.
func (p *Poller) SessionID() string {
	return p.sessionID
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Watermark returns the current watermark in millisecond epoch time.
func (p *Poller) Watermark() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

func (p *Poller) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Stop requests termination. Safe to call at any time, from any goroutine,
// more than once. The in-flight cycle is allowed to finish; the loop exits
// within at most one extra tick.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
}

// Run executes the poll loop until Stop is called or ctx is cancelled.
// It fails fast, without retrying, when the store file is missing.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("poller already %s", state)
	}
	// Only strictly-future messages are ever surfaced
	p.watermark = p.now().UnixMilli()
	p.state = StateRunning
	watermark := p.watermark
	p.mu.Unlock()

	if _, err := os.Stat(p.storePath); err != nil {
		p.setState(StateStopped)
		err = fmt.Errorf("store not accessible at %s: %w", p.storePath, err)
		p.log.Error("poller startup failed", "error", err)
		return err
	}

	p.log.Info("poller started",
		"store", p.storePath,
		"interval", p.interval,
		"limit", p.limit,
		"since", beeper.HumanTime(watermark),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			p.setState(StateStopping)
			break loop
		case <-p.stopCh:
			p.setState(StateStopping)
			break loop
		case <-ticker.C:
			p.cycle()
		}
	}

	p.setState(StateStopped)
	p.log.Info("poller stopped")
	return nil
}

// cycle runs one pull: read since the watermark, advance it over every row
// observed, then deliver the surfaced messages. A failure inside one cycle
// never terminates the loop.
func (p *Poller) cycle() {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("poll cycle failed", "panic", r)
		}
	}()

	watermark := p.Watermark()
	msgs, maxSeen := p.reader.RecentSince(watermark, p.limit)

	if maxSeen > watermark {
		p.mu.Lock()
		if maxSeen > p.watermark {
			p.watermark = maxSeen
		}
		p.mu.Unlock()
	}

	if len(msgs) == 0 {
		return
	}

	p.log.Debug("delivering messages", "count", len(msgs), "watermark", maxSeen)
	for _, msg := range msgs {
		p.sink(msg)
	}
}
