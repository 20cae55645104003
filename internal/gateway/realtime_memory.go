package gateway

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

const subscriptionQueueSize = 64

var ErrBrokerClosed = errors.New("realtime broker closed")

// MemoryBroker is an in-process Broker. Each subscription owns a goroutine
// that drains a buffered queue.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[uint64]*memorySub
	nextID uint64
	closed bool
	logger *zap.Logger
}

type memorySub struct {
	filter  Filter
	handler Handler
	queue   chan ChangeEvent
	done    chan struct{}
}

func NewMemoryBroker(logger *zap.Logger) *MemoryBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBroker{
		subs:   make(map[uint64]*memorySub),
		logger: logger,
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, ev ChangeEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBrokerClosed
	}
	targets := make([]*memorySub, 0, len(b.subs))
	for _, s := range b.subs {
		if s.filter.Matches(ev) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.queue <- ev:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, f Filter, h Handler) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBrokerClosed
	}

	s := &memorySub{
		filter:  f,
		handler: h,
		queue:   make(chan ChangeEvent, subscriptionQueueSize),
		done:    make(chan struct{}),
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s

	go s.run()

	b.logger.Debug("realtime subscription opened", zap.String("filter", f.String()))
	return newSubscription(f, func() { b.remove(id) }), nil
}

func (s *memorySub) run() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(ev)
		}
	}
}

func (b *MemoryBroker) remove(id uint64) {
	b.mu.Lock()
	s, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(s.done)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *MemoryBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*memorySub)
	b.mu.Unlock()

	for _, s := range subs {
		close(s.done)
	}
	return nil
}
