// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package sync implements the block sync master: a one-shot,
// run-to-completion state machine that reconciles our chain with the
// peers that claim to be ahead of us.
package sync

import "github.com/dusk-network/dusksync/pkg/core/chain"

// InboundKind tags the concrete payload carried by an Inbound event.
type InboundKind int

const (
	// InboundBlockHashes carries a peer's response to GetSync.
	InboundBlockHashes InboundKind = iota
	// InboundBlock carries one serialized block sent in response to
	// GetBlocks.
	InboundBlock
)

// Inbound is the event type fed into a Master's inbound channel by the
// inbound router. It is the Go shape of the two SyncInbound variants.
type Inbound struct {
	Kind        InboundKind
	PeerAddress string
	Hashes      []chain.BlockHeaderHash
	Block       []byte
}

// BlockHashes builds an InboundBlockHashes event.
func BlockHashes(peerAddress string, hashes []chain.BlockHeaderHash) Inbound {
	return Inbound{Kind: InboundBlockHashes, PeerAddress: peerAddress, Hashes: hashes}
}

// Block builds an InboundBlock event.
func Block(peerAddress string, raw []byte) Inbound {
	return Inbound{Kind: InboundBlock, PeerAddress: peerAddress, Block: raw}
}
