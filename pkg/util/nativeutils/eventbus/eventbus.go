// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package eventbus is a minimal topic publish/subscribe fabric, the
// internal gossip-fan-out mechanism the mempool uses to advertise newly
// admitted transactions.
package eventbus

import (
	"bytes"
	"sync"

	lg "github.com/sirupsen/logrus"
)

var logEB = lg.WithFields(lg.Fields{"prefix": "eventbus"})

// Topic names a channel of related messages.
type Topic string

// Listener receives every message published on a topic it is subscribed
// to.
type Listener interface {
	Collect(message bytes.Buffer) error
}

// ChannelListener adapts a plain Go channel into a Listener, for
// subscribers that would rather range over a channel than implement
// Collect.
type ChannelListener struct {
	ch chan<- bytes.Buffer
}

// NewChannelListener wraps ch as a Listener.
func NewChannelListener(ch chan<- bytes.Buffer) *ChannelListener {
	return &ChannelListener{ch: ch}
}

// Collect implements Listener by forwarding message onto the channel.
func (c *ChannelListener) Collect(message bytes.Buffer) error {
	c.ch <- message
	return nil
}

type subscription struct {
	id       uint32
	listener Listener
}

// EventBus is a topic-keyed registry of Listeners.
type EventBus struct {
	mu        sync.RWMutex
	listeners map[Topic][]subscription
	nextID    uint32
}

// New returns an empty EventBus.
func New() *EventBus {
	return &EventBus{listeners: make(map[Topic][]subscription)}
}

// Subscribe registers listener under topic and returns an id for later
// Unsubscribe.
func (bus *EventBus) Subscribe(topic Topic, listener Listener) uint32 {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	bus.nextID++
	id := bus.nextID

	bus.listeners[topic] = append(bus.listeners[topic], subscription{id: id, listener: listener})

	return id
}

// NewTopicListener is a convenience wrapper: subscribe l under topic and
// return its subscription id.
func NewTopicListener(bus *EventBus, l Listener, topic Topic) uint32 {
	return bus.Subscribe(topic, l)
}

// Unsubscribe removes the subscription identified by id from topic.
func (bus *EventBus) Unsubscribe(topic Topic, id uint32) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	subs := bus.listeners[topic]

	found := false

	for i, s := range subs {
		if s.id == id {
			bus.listeners[topic] = append(subs[:i], subs[i+1:]...)
			found = true

			break
		}
	}

	logEB.WithFields(lg.Fields{"found": found, "topic": topic}).Traceln("unsubscribing")
}

// Publish delivers message to every listener subscribed to topic,
// collecting (not aborting on) per-listener errors.
func (bus *EventBus) Publish(topic Topic, message bytes.Buffer) []error {
	bus.mu.RLock()
	subs := append([]subscription{}, bus.listeners[topic]...)
	bus.mu.RUnlock()

	var errs []error

	for _, s := range subs {
		buf := bytes.Buffer{}
		buf.Write(message.Bytes())

		if err := s.listener.Collect(buf); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
