// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package ledger

import (
	"sync"

	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/txn"
)

// MapLedger is an in-memory Ledger, the equivalent of the teacher's
// lightweight "database/lite" test backend, for unit tests that shouldn't
// pay for goleveldb I/O.
type MapLedger struct {
	mu sync.RWMutex

	serialNumbers map[txn.SerialNumber]struct{}
	commitments   map[txn.Commitment]struct{}
	memoranda     map[txn.Memorandum]struct{}
	blockHashes   map[chain.BlockHeaderHash]struct{}
	hashOrder     []chain.BlockHeaderHash

	height        uint32
	memoryPool    []byte
	memoryPoolSet bool
}

// NewMapLedger returns an empty in-memory ledger.
func NewMapLedger() *MapLedger {
	return &MapLedger{
		serialNumbers: make(map[txn.SerialNumber]struct{}),
		commitments:   make(map[txn.Commitment]struct{}),
		memoranda:     make(map[txn.Memorandum]struct{}),
		blockHashes:   make(map[chain.BlockHeaderHash]struct{}),
	}
}

// ContainsSerialNumber implements Ledger.
func (m *MapLedger) ContainsSerialNumber(sn txn.SerialNumber) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.serialNumbers[sn]
	return ok
}

// ContainsCommitment implements Ledger.
func (m *MapLedger) ContainsCommitment(cm txn.Commitment) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.commitments[cm]
	return ok
}

// ContainsMemorandum implements Ledger.
func (m *MapLedger) ContainsMemorandum(memo txn.Memorandum) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.memoranda[memo]
	return ok
}

// TransactionConflicts implements Ledger.
func (m *MapLedger) TransactionConflicts(tx txn.Transaction) bool {
	for _, sn := range tx.OldSerialNumbers() {
		if m.ContainsSerialNumber(sn) {
			return true
		}
	}

	for _, cm := range tx.NewCommitments() {
		if m.ContainsCommitment(cm) {
			return true
		}
	}

	return m.ContainsMemorandum(tx.Memorandum())
}

// BlockHashExists implements Ledger.
func (m *MapLedger) BlockHashExists(hash chain.BlockHeaderHash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blockHashes[hash]
	return ok
}

// CurrentBlockHeight implements Ledger.
func (m *MapLedger) CurrentBlockHeight() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.height
}

// BlockLocatorHashes implements Ledger.
func (m *MapLedger) BlockLocatorHashes() ([]chain.BlockHeaderHash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return locatorFrom(m.hashOrder), nil
}

// GetMemoryPool implements Ledger.
func (m *MapLedger) GetMemoryPool() ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.memoryPoolSet {
		return nil, false, nil
	}

	return m.memoryPool, true, nil
}

// StoreToMemoryPool implements Ledger.
func (m *MapLedger) StoreToMemoryPool(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.memoryPool = blob
	m.memoryPoolSet = true

	return nil
}

// InsertAndCommit implements Ledger.
func (m *MapLedger) InsertAndCommit(block *chain.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range block.Txs {
		for _, sn := range tx.OldSerialNumbers() {
			m.serialNumbers[sn] = struct{}{}
		}

		for _, cm := range tx.NewCommitments() {
			m.commitments[cm] = struct{}{}
		}

		m.memoranda[tx.Memorandum()] = struct{}{}
	}

	hash := block.Hash()
	m.blockHashes[hash] = struct{}{}
	m.hashOrder = append(m.hashOrder, hash)
	m.height++

	return nil
}
