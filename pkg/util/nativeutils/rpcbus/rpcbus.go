// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package rpcbus is a minimal request/response bus used to let the RPC
// façade and other subsystems ask the mempool questions without either
// side importing the other. It is rebuilt from the call-site contract
// the teacher's pkg/core/mempool/mempool.go exercises
// (rpcBus.Register(topic, chan), r.RespChan <- rpcbus.Response{...}) —
// the package itself was not present in the retrieval pack.
package rpcbus

import (
	"bytes"
	"fmt"
	"sync"
)

// Topic names one kind of request the bus can route.
type Topic string

// Request is one call: Params carries the request body, RespChan is where
// the handler must send exactly one Response.
type Request struct {
	Params   bytes.Buffer
	RespChan chan Response
}

// Response is a request's single reply.
type Response struct {
	Resp interface{}
	Err  error
}

// NewRequest builds a Request with a ready-to-receive response channel.
func NewRequest(params bytes.Buffer) Request {
	return Request{Params: params, RespChan: make(chan Response, 1)}
}

// RPCBus routes Requests published on a Topic to whichever channel
// registered for it.
type RPCBus struct {
	mu    sync.RWMutex
	chans map[Topic]chan Request
}

// New returns an empty RPCBus.
func New() *RPCBus {
	return &RPCBus{chans: make(map[Topic]chan Request)}
}

// Register binds topic to ch; only one registrant per topic is allowed.
func (b *RPCBus) Register(topic Topic, ch chan Request) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.chans[topic]; exists {
		return fmt.Errorf("rpcbus: topic %q already registered", topic)
	}

	b.chans[topic] = ch

	return nil
}

// Deregister removes topic's registration, if any.
func (b *RPCBus) Deregister(topic Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.chans, topic)
}

// Call sends req on topic and blocks for its Response.
func (b *RPCBus) Call(topic Topic, req Request) (Response, error) {
	b.mu.RLock()
	ch, ok := b.chans[topic]
	b.mu.RUnlock()

	if !ok {
		return Response{}, fmt.Errorf("rpcbus: no registrant for topic %q", topic)
	}

	ch <- req

	return <-req.RespChan, nil
}
