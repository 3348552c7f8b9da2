// Package notifier fans note change events out to per-owner subscribers.
//
// A single goroutine (Hub.Run) owns the subscriber registry. Subscribing,
// unsubscribing, publishing and counting are all messages to that goroutine,
// so no registry state is shared between callers.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"semnotes/internal/domain"
	"semnotes/internal/port"
)

// ErrClosed is returned when subscribing to a hub that has stopped.
var ErrClosed = errors.New("notifier closed")

// Subscription receives the events of one owner. Events closes when the
// subscription is closed, its context ends, the hub stops, or the subscriber
// falls behind and is dropped.
type Subscription struct {
	owner  string
	ch     chan domain.NoteEvent
	gone   chan struct{} // closed by the hub once the subscription is removed
	hub    *Hub
	reason string
}

// Events returns the event channel.
func (s *Subscription) Events() <-chan domain.NoteEvent {
	return s.ch
}

// Dropped reports whether the hub removed the subscription because its
// buffer was full. Only meaningful after Events has closed.
func (s *Subscription) Dropped() bool {
	select {
	case <-s.gone:
		return s.reason == reasonDropped
	default:
		return false
	}
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	select {
	case s.hub.unsubscribe <- s:
	case <-s.gone:
	case <-s.hub.stopped:
	}
}

const (
	reasonClosed  = "closed"
	reasonDropped = "dropped"
)

type subscribeReq struct {
	sub  *Subscription
	done chan struct{}
}

type countReq struct {
	owner string
	reply chan int
}

// Hub is the change notifier. Create it with NewHub and start it with Run.
type Hub struct {
	buffer      int
	logger      *slog.Logger
	subscribe   chan subscribeReq
	unsubscribe chan *Subscription
	publish     chan domain.NoteEvent
	count       chan countReq
	quit        chan struct{}
	stopped     chan struct{}
	quitOnce    sync.Once
	running     atomic.Bool
}

var _ port.Publisher = (*Hub)(nil)

// NewHub creates a hub whose subscribers each buffer up to buffer events.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		buffer:      buffer,
		logger:      logger,
		subscribe:   make(chan subscribeReq),
		unsubscribe: make(chan *Subscription),
		publish:     make(chan domain.NoteEvent),
		count:       make(chan countReq),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Run owns the subscriber registry until ctx is done or Close is called.
// All open subscriptions are closed when it returns.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	subs := make(map[string]map[*Subscription]struct{})

	remove := func(sub *Subscription, reason string) {
		set, ok := subs[sub.owner]
		if !ok {
			return
		}
		if _, ok := set[sub]; !ok {
			return
		}
		delete(set, sub)
		if len(set) == 0 {
			delete(subs, sub.owner)
		}
		sub.reason = reason
		close(sub.ch)
		close(sub.gone)
	}

	defer func() {
		for _, set := range subs {
			for sub := range set {
				remove(sub, reasonClosed)
			}
		}
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.quit:
			return

		case req := <-h.subscribe:
			set, ok := subs[req.sub.owner]
			if !ok {
				set = make(map[*Subscription]struct{})
				subs[req.sub.owner] = set
			}
			set[req.sub] = struct{}{}
			close(req.done)

		case sub := <-h.unsubscribe:
			remove(sub, reasonClosed)

		case event := <-h.publish:
			for sub := range subs[event.OwnerID] {
				select {
				case sub.ch <- event:
				default:
					h.logger.Warn("dropping slow subscriber", "owner_id", event.OwnerID, "buffer", h.buffer)
					remove(sub, reasonDropped)
				}
			}

		case req := <-h.count:
			req.reply <- len(subs[req.owner])
		}
	}
}

// Close stops Run and waits for it to release every subscription. It is safe
// to call more than once.
func (h *Hub) Close() {
	h.quitOnce.Do(func() { close(h.quit) })
	if h.running.Load() {
		<-h.stopped
	}
}

// Subscribe registers interest in ownerID's events. The subscription ends
// when ctx is done or Close is called on it.
func (h *Hub) Subscribe(ctx context.Context, ownerID string) (*Subscription, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", domain.ErrValidation)
	}

	sub := &Subscription{
		owner: ownerID,
		ch:    make(chan domain.NoteEvent, h.buffer),
		gone:  make(chan struct{}),
		hub:   h,
	}
	req := subscribeReq{sub: sub, done: make(chan struct{})}

	select {
	case h.subscribe <- req:
	case <-h.stopped:
		return nil, ErrClosed
	case <-h.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	<-req.done

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.gone:
		}
	}()

	return sub, nil
}

// Publish delivers event to the current subscribers of event.OwnerID. It
// never waits on subscribers, only on the hub accepting the message.
func (h *Hub) Publish(ctx context.Context, event domain.NoteEvent) {
	select {
	case h.publish <- event:
	case <-h.stopped:
	case <-h.quit:
	case <-ctx.Done():
	}
}

// Subscribers returns how many subscriptions ownerID currently has, or 0 once
// the hub has stopped.
func (h *Hub) Subscribers(ctx context.Context, ownerID string) int {
	req := countReq{owner: ownerID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.stopped:
		return 0
	case <-ctx.Done():
		return 0
	}
}
