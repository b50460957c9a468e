// Package capture turns a live position stream or user map clicks into an
// ordered path. A Capture is a small state machine owned by one client
// session; it emits pure data (points, results) through Events and never
// touches map overlays itself.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/validation"
)

// State is the lifecycle position of a Capture.
type State int

const (
	Idle State = iota
	Selecting
	Recording
	Drawing
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selecting:
		return "selecting"
	case Recording:
		return "recording"
	case Drawing:
		return "drawing"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrBusy is returned when a capture is started while another one is active.
	ErrBusy = errors.New("capture already in progress")
	// ErrInvalidTransition is returned when an operation does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid capture transition")
	// ErrTooFewPoints is returned when a route is finished with fewer than two points.
	ErrTooFewPoints = errors.New("a route needs at least 2 points")
	// ErrStream wraps failures reported by the position stream.
	ErrStream = errors.New("position stream failed")
)

// MinRoutePoints is the number of points a recorded or drawn route needs to be kept.
const MinRoutePoints = 2

// Subscription is a handle on an input event subscription.
// Unsubscribe must be idempotent.
type Subscription interface {
	Unsubscribe()
}

// PositionStream delivers live position samples, e.g. from a device GPS.
type PositionStream interface {
	SubscribePositions(onSample func(domain.PathPoint), onError func(error)) Subscription
}

// ClickStream delivers coordinates the user selected on the map.
type ClickStream interface {
	SubscribeClicks(onClick func(domain.Coordinate)) Subscription
}

// Result is the point sequence handed over when a capture finalizes.
// Kind is KindMarker for a selection (one point) and KindRoute otherwise.
type Result struct {
	Kind   domain.Kind
	Points []domain.PathPoint
}

// Events receives everything a Capture observes. Nil fields are ignored.
// Callbacks run after the capture has released its lock, so they may call
// back into the Capture.
type Events struct {
	StateChanged  func(State)
	PointAdded    func(domain.PathPoint)
	PointRejected func(error)
	Finalized     func(Result)
	Discarded     func(reason string)
	Failed        func(error)
}

// Capture accumulates one path at a time. All transitions are serialized by
// an internal mutex; input callbacks from a released subscription are ignored.
type Capture struct {
	mu     sync.Mutex
	state  State
	points []domain.PathPoint
	sub    Subscription
	gen    uint64

	positions PositionStream
	clicks    ClickStream
	events    Events
	now       func() time.Time
}

// Option configures a Capture.
type Option func(*Capture)

// WithClock overrides the clock used to timestamp clicked points.
func WithClock(now func() time.Time) Option {
	return func(c *Capture) { c.now = now }
}

// New returns an idle Capture reading from the given streams.
func New(positions PositionStream, clicks ClickStream, events Events, opts ...Option) *Capture {
	c := &Capture{
		positions: positions,
		clicks:    clicks,
		events:    events,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Capture) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Points returns a copy of the points accumulated so far.
func (c *Capture) Points() []domain.PathPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.PathPoint{}, c.points...)
}

// StartSelecting waits for a single clicked coordinate to place a marker.
func (c *Capture) StartSelecting() error {
	return c.start(Selecting)
}

// StartRecording subscribes to the position stream and appends every sample.
func (c *Capture) StartRecording() error {
	return c.start(Recording)
}

// StartDrawing appends every clicked coordinate until Save or Cancel.
func (c *Capture) StartDrawing() error {
	return c.start(Drawing)
}

func (c *Capture) start(target State) error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return fmt.Errorf("capture.Start(%s): %w", target, ErrBusy)
	}

	c.gen++
	gen := c.gen
	c.points = nil
	c.state = target
	c.mu.Unlock()

	c.emit(c.stateEvent(target))

	// Streams may call back from inside Subscribe (a device that refuses
	// access fails immediately), so the lock is not held here.
	var sub Subscription
	switch target {
	case Recording:
		sub = c.positions.SubscribePositions(
			func(p domain.PathPoint) { c.onSample(gen, p) },
			func(err error) { c.onStreamError(gen, err) },
		)
	default:
		sub = c.clicks.SubscribeClicks(func(co domain.Coordinate) { c.onClick(gen, co) })
	}

	c.mu.Lock()
	if gen != c.gen {
		// Finalized, failed or cancelled while subscribing.
		c.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return nil
	}
	c.sub = sub
	c.mu.Unlock()
	return nil
}

// Stop ends a recording. With fewer than MinRoutePoints points the capture is
// discarded and ErrTooFewPoints is returned; otherwise it is finalized.
// Either way the capture is Idle afterwards.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.state != Recording {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("capture.Stop from %s: %w", st, ErrInvalidTransition)
	}

	if len(c.points) < MinRoutePoints {
		n := len(c.points)
		c.resetLocked()
		c.mu.Unlock()
		c.emit(
			c.discardEvent(fmt.Sprintf("recorded %d point(s), need %d", n, MinRoutePoints)),
			c.stateEvent(Idle),
		)
		return fmt.Errorf("capture.Stop: %w", ErrTooFewPoints)
	}

	events := c.finalizeLocked(domain.KindRoute)
	c.mu.Unlock()
	c.emit(events...)
	return nil
}

// Save finalizes a drawing. With fewer than MinRoutePoints points it returns
// ErrTooFewPoints and keeps drawing.
func (c *Capture) Save() error {
	c.mu.Lock()
	if c.state != Drawing {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("capture.Save from %s: %w", st, ErrInvalidTransition)
	}
	if len(c.points) < MinRoutePoints {
		c.mu.Unlock()
		return fmt.Errorf("capture.Save: %w", ErrTooFewPoints)
	}

	events := c.finalizeLocked(domain.KindRoute)
	c.mu.Unlock()
	c.emit(events...)
	return nil
}

// Cancel discards any active capture and releases its subscription.
// Cancelling an idle capture is a no-op.
func (c *Capture) Cancel() {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.mu.Unlock()
	c.emit(c.discardEvent("cancelled"), c.stateEvent(Idle))
}

func (c *Capture) onClick(gen uint64, co domain.Coordinate) {
	c.mu.Lock()
	if gen != c.gen || (c.state != Selecting && c.state != Drawing) {
		c.mu.Unlock()
		return
	}
	if err := validation.Coordinate(co); err != nil {
		c.mu.Unlock()
		c.emit(c.rejectEvent(err))
		return
	}

	ts := c.now().UTC()
	if n := len(c.points); n > 0 && ts.Before(c.points[n-1].Timestamp) {
		ts = c.points[n-1].Timestamp
	}
	p := domain.PathPoint{Coordinate: co, Timestamp: ts}
	c.points = append(c.points, p)

	events := []func(){c.pointEvent(p)}
	if c.state == Selecting {
		events = append(events, c.finalizeLocked(domain.KindMarker)...)
	}
	c.mu.Unlock()
	c.emit(events...)
}

func (c *Capture) onSample(gen uint64, p domain.PathPoint) {
	c.mu.Lock()
	if gen != c.gen || c.state != Recording {
		c.mu.Unlock()
		return
	}
	if err := validation.Struct(p); err != nil {
		c.mu.Unlock()
		c.emit(c.rejectEvent(err))
		return
	}
	var last time.Time
	if n := len(c.points); n > 0 {
		last = c.points[n-1].Timestamp
	}
	if err := domain.CheckPathOrder(last, []domain.PathPoint{p}); err != nil {
		c.mu.Unlock()
		c.emit(c.rejectEvent(err))
		return
	}
	c.points = append(c.points, p)
	c.mu.Unlock()
	c.emit(c.pointEvent(p))
}

func (c *Capture) onStreamError(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen || c.state != Recording {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	c.mu.Unlock()

	failure := fmt.Errorf("%w: %w", ErrStream, err)
	c.emit(c.stateEvent(Idle), func() {
		if c.events.Failed != nil {
			c.events.Failed(failure)
		}
	})
}

// finalizeLocked hands the points over and resets to Idle. The caller holds
// mu and must emit the returned events after unlocking.
func (c *Capture) finalizeLocked(kind domain.Kind) []func() {
	res := Result{Kind: kind, Points: c.points}
	c.points = nil
	c.releaseLocked()
	c.state = Idle
	return []func(){
		c.stateEvent(Finalized),
		func() {
			if c.events.Finalized != nil {
				c.events.Finalized(res)
			}
		},
		c.stateEvent(Idle),
	}
}

func (c *Capture) resetLocked() {
	c.points = nil
	c.releaseLocked()
	c.state = Idle
}

// releaseLocked drops the input subscription and invalidates callbacks that
// might still be in flight from it.
func (c *Capture) releaseLocked() {
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	c.gen++
}

func (c *Capture) emit(events ...func()) {
	for _, e := range events {
		e()
	}
}

func (c *Capture) stateEvent(s State) func() {
	return func() {
		if c.events.StateChanged != nil {
			c.events.StateChanged(s)
		}
	}
}

func (c *Capture) pointEvent(p domain.PathPoint) func() {
	return func() {
		if c.events.PointAdded != nil {
			c.events.PointAdded(p)
		}
	}
}

func (c *Capture) rejectEvent(err error) func() {
	return func() {
		if c.events.PointRejected != nil {
			c.events.PointRejected(err)
		}
	}
}

func (c *Capture) discardEvent(reason string) func() {
	return func() {
		if c.events.Discarded != nil {
			c.events.Discarded(reason)
		}
	}
}
