// Package pubsub implements a simple publish-subscribe broker used for
// broadcasting process-local events (e.g. lifecycle state transitions) to
// an arbitrary number of interested listeners.
package pubsub

import (
	"sync"

	"github.com/eapache/channels"
)

// Subscription is a subscription to a Broker.
type Subscription struct {
	broker *Broker
	ch     channels.Channel

	closeOnce sync.Once
}

// Unwrap returns a typed channel that receives the values published on
// the Broker, for convenience at call sites that want a native Go channel
// instead of the channels.Channel abstraction.
func (s *Subscription) Unwrap(dstCh interface{}) {
	switch ch := dstCh.(type) {
	default:
		unwrapPanic(ch)
	case chan int:
		go func() {
			for v := range s.ch.Out() {
				ch <- v.(int)
			}
		}()
	}
}

func unwrapPanic(ch interface{}) {
	// This mirrors the teacher's typed-channel unwrap helper, which only
	// needs to support the concrete event payload types this repository
	// publishes (lifecycle states); callers passing an unsupported
	// channel type is a programming error.
	panic("pubsub: unsupported channel type for Unwrap")
}

// Close unsubscribes from the Broker.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.broker.unsubscribe(s)
		s.ch.Close()
	})
}

// Broker is a simple pub-sub broker instance.
type Broker struct {
	sync.Mutex

	subscribers map[*Subscription]bool

	lastValue   interface{}
	lastValueOk bool
	pubLast     bool

	onSubscribe func(channels.Channel)
}

// NewBroker creates a new Broker. If pubLast is true, new subscribers
// immediately receive the last broadcast value (if any) upon subscribing.
func NewBroker(pubLast bool) *Broker {
	return &Broker{
		subscribers: make(map[*Subscription]bool),
		pubLast:     pubLast,
	}
}

// NewBrokerEx creates a new Broker with a callback invoked with the
// underlying channels.Channel every time a new subscription is created,
// primarily useful for tests that need to inspect or drive the channel
// directly.
func NewBrokerEx(onSubscribe func(channels.Channel)) *Broker {
	b := NewBroker(false)
	b.onSubscribe = onSubscribe
	return b
}

// Subscribe subscribes to the Broker with an unbounded (infinite) buffer.
func (b *Broker) Subscribe() *Subscription {
	return b.SubscribeBuffered(int64(channels.Infinity))
}

// SubscribeBuffered subscribes to the Broker with a buffer of the given
// size. If size is channels.Infinity the buffer is unbounded; otherwise
// it is a ring buffer that overwrites the oldest unread value.
func (b *Broker) SubscribeBuffered(size int64) *Subscription {
	return b.SubscribeEx(size, nil)
}

// SubscribeEx subscribes to the Broker, additionally invoking cb (if set)
// with the newly created channel, and the Broker-level onSubscribe
// callback (if set).
func (b *Broker) SubscribeEx(size int64, cb func(channels.Channel)) *Subscription {
	var ch channels.Channel
	if size == int64(channels.Infinity) {
		ch = channels.NewInfiniteChannel()
	} else {
		ch = channels.NewRingChannel(channels.BufferCap(size))
	}

	sub := &Subscription{broker: b, ch: ch}

	b.Lock()
	b.subscribers[sub] = true
	if b.pubLast && b.lastValueOk {
		ch.In() <- b.lastValue
	}
	b.Unlock()

	if cb != nil {
		cb(ch)
	}
	if b.onSubscribe != nil {
		b.onSubscribe(ch)
	}

	return sub
}

func (b *Broker) unsubscribe(sub *Subscription) {
	b.Lock()
	defer b.Unlock()
	delete(b.subscribers, sub)
}

// Broadcast publishes v to all current subscribers.
func (b *Broker) Broadcast(v interface{}) {
	b.Lock()
	defer b.Unlock()

	b.lastValue = v
	b.lastValueOk = true
	for sub := range b.subscribers {
		sub.ch.In() <- v
	}
}
