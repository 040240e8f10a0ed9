// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package sync

import (
	"github.com/dusk-network/dusksync/pkg/core/ledger"
	"github.com/dusk-network/dusksync/pkg/core/peerbook"
)

// Node is the narrow slice of the surrounding node a Master needs. It is
// deliberately small: the node holds a sync handle and the sync master
// holds a node reference, so the cycle is broken by never giving the
// master more than a read-only view of peer book and ledger plus the two
// callbacks block ingestion requires (spec.md §9 "cyclic ownership").
type Node interface {
	// PeerBook returns the connected-peer directory.
	PeerBook() peerbook.PeerBook
	// Ledger returns the committed chain state.
	Ledger() ledger.Ledger
	// ProcessReceivedBlock hands one synced block, received from peer, to
	// the rest of the node for acceptance. nonSequential is always false
	// for blocks delivered through sync ingestion.
	ProcessReceivedBlock(peer string, raw []byte, nonSequential bool) error
	// FinishedSyncingBlocks signals that this run's ingestion phase has
	// handed every received block to ProcessReceivedBlock. It is not called
	// when ProcessReceivedBlock returns an error.
	FinishedSyncingBlocks()
}
