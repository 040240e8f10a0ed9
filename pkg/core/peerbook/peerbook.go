// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package peerbook defines the connected-peer-bookkeeping surface the sync
// master consumes: a snapshot of connected peers and a handle-based send
// to a single peer, per spec.md §6.
package peerbook

import (
	"context"

	"github.com/dusk-network/dusksync/pkg/core/wire"
)

// Quality is the per-peer health snapshot the sync master reads when
// deciding who to pull blocks from.
type Quality struct {
	BlockHeight uint32
	JudgeBad    bool
}

// PeerSnapshot is a point-in-time view of one connected peer.
type PeerSnapshot struct {
	Address string
	Quality Quality
}

// PeerHandle lets a caller talk to one connected peer without holding the
// book's lock.
type PeerHandle interface {
	// SendPayload delivers p to the peer.
	SendPayload(ctx context.Context, p wire.Payload) error
	// ExpectingSyncBlocks arms the peer's sync counter: the peer is now
	// expected to deliver n SyncBlock payloads.
	ExpectingSyncBlocks(n uint32)
	// CancelSync closes the peer's expected-block counter.
	CancelSync()

	// RecordPingSent arms the expecting-pong flag and stamps the current
	// time as the last ping sent, so a later RecordPong can derive RTT.
	RecordPingSent()
	// RecordPong clears the expecting-pong flag and reports the RTT since
	// the last RecordPingSent, saturated to the maximum uint64 if no ping
	// was ever recorded. expected is false if no pong was outstanding, in
	// which case the peer has failed a protocol expectation.
	RecordPong() (rttMillis uint64, expected bool)
	// RecordPing stores height as the peer's newly advertised block
	// height, in response to an inbound Ping.
	RecordPing(height uint32)
	// RecordProtocolViolation marks the peer as having broken protocol
	// expectations (e.g. an unsolicited Pong), feeding into JudgeBad.
	RecordProtocolViolation()
}

// PeerBook is the connected-peer directory the sync master reads from.
type PeerBook interface {
	// ConnectedPeersSnapshot returns a snapshot of every connected peer.
	ConnectedPeersSnapshot() []PeerSnapshot
	// GetPeerHandle looks up a handle for address, if still connected.
	GetPeerHandle(address string) (PeerHandle, bool)
}
