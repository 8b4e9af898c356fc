package navigator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/econav360/econav/internal/geo"
)

const (
	// DefaultMinMoveMeters is the distance a fix must move from the last
	// accepted one to count as an update.
	DefaultMinMoveMeters = 15.0

	// DefaultMinInterval is the minimum time between accepted updates.
	DefaultMinInterval = time.Second
)

// Fix is a raw position reported by a PositionSource.
type Fix struct {
	Coordinate geo.Coordinate
	// Timestamp is when the fix was taken. Zero means "now".
	Timestamp time.Time
	// AccuracyMeters is the reported horizontal accuracy, if known.
	AccuracyMeters float64
}

// WatchOptions are passed through to the PositionSource.
type WatchOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultWatchOptions mirrors what browsers are asked for when watching position.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		HighAccuracy: true,
		Timeout:      15 * time.Second,
		MaximumAge:   5 * time.Second,
	}
}

// PositionSource is the platform capability that streams position fixes.
// Watch must deliver fixes and errors sequentially, in the order they were
// produced, until the returned stop function is called.
type PositionSource interface {
	Watch(ctx context.Context, opts WatchOptions, onFix func(Fix), onError func(error)) (stop func(), err error)
}

// TrackedPosition is the user's last accepted position.
type TrackedPosition struct {
	Coordinate geo.Coordinate
	AcceptedAt time.Time
}

// TrackerConfig holds configuration for the Tracker.
type TrackerConfig struct {
	// Source provides raw fixes. Nil means location is unavailable.
	Source PositionSource

	// MinMoveMeters defaults to DefaultMinMoveMeters.
	MinMoveMeters float64

	// MinInterval defaults to DefaultMinInterval.
	MinInterval time.Duration

	// Watch defaults to DefaultWatchOptions().
	Watch *WatchOptions

	// OnError receives location errors. Optional.
	OnError func(error)

	Logger zerolog.Logger
}

// Tracker maintains a single position subscription and filters out fixes
// that are too close in space or time to the last accepted one.
type Tracker struct {
	source        PositionSource
	minMoveMeters float64
	minInterval   time.Duration
	watch         WatchOptions
	onError       func(error)
	logger        zerolog.Logger

	mu        sync.Mutex
	running   bool
	session   uint64
	stop      func()
	last      *TrackedPosition
	listeners []func(TrackedPosition)
}

// NewTracker creates a Tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	minMove := cfg.MinMoveMeters
	if minMove == 0 {
		minMove = DefaultMinMoveMeters
	}

	minInterval := cfg.MinInterval
	if minInterval == 0 {
		minInterval = DefaultMinInterval
	}

	watch := DefaultWatchOptions()
	if cfg.Watch != nil {
		watch = *cfg.Watch
	}

	return &Tracker{
		source:        cfg.Source,
		minMoveMeters: minMove,
		minInterval:   minInterval,
		watch:         watch,
		onError:       cfg.OnError,
		logger:        cfg.Logger,
	}
}

// OnUpdate registers fn to be called with every accepted position.
// Listeners are called sequentially, outside the tracker's lock.
func (t *Tracker) OnUpdate(fn func(TrackedPosition)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Start begins watching the position source. A second Start while running is
// a no-op. Failures are logged and reported to OnError; the returned error
// wraps ErrLocationUnavailable and leaves the tracker stopped.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	if t.source == nil {
		t.mu.Unlock()
		err := fmt.Errorf("%w: no position source", ErrLocationUnavailable)
		t.reportError(err)
		return err
	}
	t.running = true
	t.session++
	session := t.session
	t.mu.Unlock()

	stop, err := t.source.Watch(ctx, t.watch,
		func(f Fix) { t.handleFix(session, f) },
		func(err error) { t.handleError(session, err) },
	)
	if err != nil {
		t.mu.Lock()
		if t.session == session {
			t.running = false
		}
		t.mu.Unlock()
		err = fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
		t.reportError(err)
		return err
	}

	t.mu.Lock()
	if t.session != session || !t.running {
		// Stopped while Watch was starting.
		t.mu.Unlock()
		stop()
		return nil
	}
	t.stop = stop
	t.mu.Unlock()

	t.logger.Debug().Msg("position watch started")
	return nil
}

// Stop releases the subscription and discards the tracked position. Safe to
// call repeatedly or before Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	stop := t.stop
	wasRunning := t.running
	t.stop = nil
	t.running = false
	t.session++
	t.last = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	if wasRunning {
		t.logger.Debug().Msg("position watch stopped")
	}
}

// Last returns the last accepted position.
func (t *Tracker) Last() (TrackedPosition, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return TrackedPosition{}, false
	}
	return *t.last, true
}

func (t *Tracker) handleFix(session uint64, f Fix) {
	if err := geo.Validate(f.Coordinate); err != nil {
		t.logger.Warn().Err(err).Msg("dropping invalid position fix")
		return
	}

	at := f.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	t.mu.Lock()
	if session != t.session || !t.running {
		t.mu.Unlock()
		return
	}
	if !t.significant(f.Coordinate, at) {
		t.mu.Unlock()
		return
	}
	pos := TrackedPosition{Coordinate: f.Coordinate, AcceptedAt: at}
	t.last = &pos
	listeners := make([]func(TrackedPosition), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(pos)
	}
}

// significant reports whether a fix passes both the distance and the time
// threshold. The first fix always passes. Must be called with t.mu held.
func (t *Tracker) significant(c geo.Coordinate, at time.Time) bool {
	if t.last == nil {
		return true
	}
	if geo.Distance(t.last.Coordinate, c) <= t.minMoveMeters {
		return false
	}
	return at.Sub(t.last.AcceptedAt) >= t.minInterval
}

func (t *Tracker) handleError(session uint64, err error) {
	t.mu.Lock()
	current := session == t.session && t.running
	t.mu.Unlock()
	if !current {
		return
	}
	t.reportError(fmt.Errorf("%w: %v", ErrLocationUnavailable, err))
}

func (t *Tracker) reportError(err error) {
	t.logger.Warn().Err(err).Msg("location unavailable")
	if t.onError != nil {
		t.onError(err)
	}
}
