// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package ledger defines the read-only (and narrow read/write) surface the
// mempool and sync master consume from the committed chain state, plus a
// goleveldb-backed reference implementation, following the storage
// conventions of pkg/core/chain's original ldb type.
package ledger

import (
	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/txn"
)

// Ledger is the query surface the mempool uses for admission checks and
// the sync master uses for locator hashes, height, and block commits.
type Ledger interface {
	// ContainsSerialNumber reports whether sn has already been spent.
	ContainsSerialNumber(sn txn.SerialNumber) bool
	// ContainsCommitment reports whether cm is already bound on-chain.
	ContainsCommitment(cm txn.Commitment) bool
	// ContainsMemorandum reports whether memo already appears on-chain.
	ContainsMemorandum(memo txn.Memorandum) bool
	// TransactionConflicts reports whether tx shares a serial number,
	// commitment, or memorandum with anything already committed.
	TransactionConflicts(tx txn.Transaction) bool

	// BlockHashExists reports whether hash identifies a block we already
	// have.
	BlockHashExists(hash chain.BlockHeaderHash) bool
	// CurrentBlockHeight returns the height of our chain tip.
	CurrentBlockHeight() uint32
	// BlockLocatorHashes returns a sparse, geometrically-spaced list of
	// recent block hashes ending at genesis.
	BlockLocatorHashes() ([]chain.BlockHeaderHash, error)

	// GetMemoryPool reads the persisted mempool snapshot blob. ok is
	// false if no blob has ever been stored.
	GetMemoryPool() (blob []byte, ok bool, err error)
	// StoreToMemoryPool writes the mempool snapshot blob.
	StoreToMemoryPool(blob []byte) error

	// InsertAndCommit appends block to the chain, indexing its
	// transactions' serial numbers, commitments, and memoranda so future
	// conflict checks see them.
	InsertAndCommit(block *chain.Block) error
}
