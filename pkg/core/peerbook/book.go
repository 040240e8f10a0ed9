// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package peerbook

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dusk-network/dusksync/pkg/core/wire"
)

// Sender delivers an encoded payload to one connected peer; the concrete
// connection/transport is outside this package's concern (spec.md's
// "wire framing, connection lifecycle" Non-goal).
type Sender interface {
	Send(ctx context.Context, p wire.Payload) error
}

// Peer is the reference PeerHandle implementation: one per connected
// address, tracking the handful of quality fields the sync master and
// inbound router read and write.
type Peer struct {
	mu sync.Mutex

	address string
	sender  Sender

	blockHeight uint32
	judgeBad    bool

	expectingPong bool
	lastPingSent  time.Time
	rttMillis     uint64

	expectedSyncBlocks uint32
}

// NewPeer returns a Peer handle for address, sending through sender.
func NewPeer(address string, sender Sender) *Peer {
	return &Peer{address: address, sender: sender}
}

// SendPayload implements PeerHandle.
func (p *Peer) SendPayload(ctx context.Context, payload wire.Payload) error {
	return p.sender.Send(ctx, payload)
}

// ExpectingSyncBlocks implements PeerHandle.
func (p *Peer) ExpectingSyncBlocks(n uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expectedSyncBlocks = n
}

// CancelSync implements PeerHandle.
func (p *Peer) CancelSync() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expectedSyncBlocks = 0
}

// RecordPingSent implements PeerHandle.
func (p *Peer) RecordPingSent() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expectingPong = true
	p.lastPingSent = time.Now()
}

// RecordPong implements PeerHandle.
func (p *Peer) RecordPong() (uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.expectingPong {
		return 0, false
	}

	rtt := uint64(math.MaxUint64)
	if !p.lastPingSent.IsZero() {
		rtt = uint64(time.Since(p.lastPingSent).Milliseconds())
	}

	p.expectingPong = false
	p.rttMillis = rtt

	return rtt, true
}

// RecordPing implements PeerHandle.
func (p *Peer) RecordPing(height uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.blockHeight = height
}

// RecordProtocolViolation implements PeerHandle.
func (p *Peer) RecordProtocolViolation() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.judgeBad = true
}

// Snapshot returns this peer's current quality as a PeerSnapshot.
func (p *Peer) Snapshot() PeerSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PeerSnapshot{
		Address: p.address,
		Quality: Quality{BlockHeight: p.blockHeight, JudgeBad: p.judgeBad},
	}
}

// Book is the reference PeerBook implementation: a registry of connected
// Peer handles, guarded by a single lock per spec.md §5 ("concurrent
// writes serialized by the book").
type Book struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewBook returns an empty Book.
func NewBook() *Book {
	return &Book{peers: make(map[string]*Peer)}
}

// Add registers peer as connected, replacing any prior handle at the
// same address.
func (b *Book) Add(peer *Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.peers[peer.address] = peer
}

// Remove forgets the peer at address.
func (b *Book) Remove(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.peers, address)
}

// ConnectedPeersSnapshot implements PeerBook.
func (b *Book) ConnectedPeersSnapshot() []PeerSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshots := make([]PeerSnapshot, 0, len(b.peers))
	for _, p := range b.peers {
		snapshots = append(snapshots, p.Snapshot())
	}

	return snapshots
}

// GetPeerHandle implements PeerBook.
func (b *Book) GetPeerHandle(address string) (PeerHandle, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.peers[address]

	return p, ok
}
