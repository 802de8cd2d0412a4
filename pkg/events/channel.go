/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package events is the in-process publish/subscribe transport that carries
// scene requests, side-effect toggles and completion notifications.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"
	"go.uber.org/zap"
)

const defaultQueueHint = 16

// Channel is a typed event channel. Events published on one channel reach
// subscribers in publish order; there is no ordering across channels.
//
// Delivery happens on the publishing goroutine. A publish issued while the
// channel is already delivering, including one issued from inside a
// subscriber, is queued and delivered by the goroutine that is draining, so
// subscribers may publish freely without deadlocking.
//
// Methods on a nil *Channel are no-ops, which is how unwired channels behave.
type Channel[T any] struct {
	name string

	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]

	pending  *queue.Queue
	draining atomic.Bool
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{
		name:    name,
		pending: queue.New(defaultQueueHint),
	}
}

func (c *Channel[T]) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Subscribe registers fn and returns the handle that removes it again.
func (c *Channel[T]) Subscribe(fn func(T)) *Subscription {
	if c == nil || fn == nil {
		return &Subscription{}
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	c.mu.Unlock()
	return &Subscription{cancel: func() { c.unsubscribe(id) }}
}

func (c *Channel[T]) unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.subs {
		if s.id == id {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of registered subscribers.
func (c *Channel[T]) Subscribers() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Publish delivers v to every currently registered subscriber.
func (c *Channel[T]) Publish(v T) {
	if c == nil {
		return
	}
	if err := c.pending.Put(v); err != nil {
		Logger().Debug("publish on closed channel", zap.String("channel", c.name))
		return
	}
	c.drain()
}

func (c *Channel[T]) drain() {
	for {
		if !c.draining.CompareAndSwap(false, true) {
			return
		}
		for !c.pending.Empty() {
			items, err := c.pending.Get(1)
			if err != nil {
				break
			}
			for _, item := range items {
				c.deliver(item.(T))
			}
		}
		c.draining.Store(false)
		if c.pending.Empty() || c.pending.Disposed() {
			return
		}
	}
}

func (c *Channel[T]) deliver(v T) {
	c.mu.RLock()
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	for _, s := range subs {
		c.call(s, v)
	}
}

func (c *Channel[T]) call(s subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("subscriber panicked",
				zap.String("channel", c.name),
				zap.Any("panic", r))
		}
	}()
	s.fn(v)
}

// Close drops pending events and rejects further publishes.
func (c *Channel[T]) Close() {
	if c == nil {
		return
	}
	c.pending.Dispose()
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Close unregisters the subscriber. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Subscriptions releases a set of handles together.
type Subscriptions []*Subscription

func (ss *Subscriptions) Add(s *Subscription) { *ss = append(*ss, s) }

func (ss *Subscriptions) Close() {
	for _, s := range *ss {
		s.Close()
	}
	*ss = nil
}
