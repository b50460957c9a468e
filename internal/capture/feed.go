package capture

import (
	"sync"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
)

// Feed is an in-process event source implementing both PositionStream and
// ClickStream. A transport (e.g. a websocket session) publishes what the
// client reports; whichever Capture is subscribed at that moment receives it.
// Events published with no subscriber are dropped.
type Feed struct {
	mu        sync.Mutex
	nextID    uint64
	positions map[uint64]positionHandlers
	clicks    map[uint64]func(domain.Coordinate)
}

type positionHandlers struct {
	onSample func(domain.PathPoint)
	onError  func(error)
}

// NewFeed returns a Feed with no subscribers.
func NewFeed() *Feed {
	return &Feed{
		positions: make(map[uint64]positionHandlers),
		clicks:    make(map[uint64]func(domain.Coordinate)),
	}
}

// SubscribePositions implements PositionStream.
func (f *Feed) SubscribePositions(onSample func(domain.PathPoint), onError func(error)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.positions[id] = positionHandlers{onSample: onSample, onError: onError}
	return &feedSub{release: func() {
		f.mu.Lock()
		delete(f.positions, id)
		f.mu.Unlock()
	}}
}

// SubscribeClicks implements ClickStream.
func (f *Feed) SubscribeClicks(onClick func(domain.Coordinate)) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.clicks[id] = onClick
	return &feedSub{release: func() {
		f.mu.Lock()
		delete(f.clicks, id)
		f.mu.Unlock()
	}}
}

// PublishPosition delivers a sample and reports how many subscribers got it.
func (f *Feed) PublishPosition(p domain.PathPoint) int {
	f.mu.Lock()
	handlers := make([]positionHandlers, 0, len(f.positions))
	for _, h := range f.positions {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h.onSample(p)
	}
	return len(handlers)
}

// PublishPositionError delivers a stream failure (permission denied, timeout…).
func (f *Feed) PublishPositionError(err error) int {
	f.mu.Lock()
	handlers := make([]positionHandlers, 0, len(f.positions))
	for _, h := range f.positions {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h.onError(err)
	}
	return len(handlers)
}

// PublishClick delivers a map click.
func (f *Feed) PublishClick(c domain.Coordinate) int {
	f.mu.Lock()
	handlers := make([]func(domain.Coordinate), 0, len(f.clicks))
	for _, h := range f.clicks {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(c)
	}
	return len(handlers)
}

// Subscribers returns the number of live subscriptions of both kinds.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.positions) + len(f.clicks)
}

type feedSub struct {
	once    sync.Once
	release func()
}

func (s *feedSub) Unsubscribe() {
	s.once.Do(s.release)
}
