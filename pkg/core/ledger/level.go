// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package ledger

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/txn"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	leveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
)

// Key prefixes, mirroring the flat-keyspace convention of the teacher's
// original pkg/core/chain/database.go ldb type ("HEADER", "Input", ...).
var (
	prefixSerialNumber = []byte("sn/")
	prefixCommitment   = []byte("cm/")
	prefixMemorandum   = []byte("memo/")
	prefixBlockHash    = []byte("blk/")

	keyHeight          = []byte("height")
	keyMemoryPool      = []byte("mempool-snapshot")
	keyLocatorOrdinals = []byte("locator-ordinals")
)

// LevelLedger is the reference Ledger implementation, backed by goleveldb.
// InsertAndCommit writes the block hash and the sn/cm/memo/height keys in
// one leveldb batch; the locator ordinals are written by a separate Put
// afterwards, so that write is not atomic with the batch. Real
// consensus-level storage belongs to the node's storage engine (spec.md
// §1, out of scope); this type exists to exercise the Ledger contract
// end-to-end in tests.
type LevelLedger struct {
	mu sync.RWMutex
	db *leveldb.DB

	// committedHashes holds every committed block hash in commit order,
	// used to build the block locator.
	committedHashes []chain.BlockHeaderHash
}

// OpenLevelLedger opens (or creates) a goleveldb-backed ledger at path,
// attempting the teacher's corruption-recovery fallback.
func OpenLevelLedger(path string) (*LevelLedger, error) {
	db, err := leveldb.OpenFile(path, nil)

	if _, corrupted := err.(*leveldberrors.ErrCorrupted); corrupted {
		db, err = leveldb.RecoverFile(path, nil)
	}

	if _, denied := err.(*os.PathError); denied {
		return nil, errors.Wrap(err, "could not open or create ledger db")
	}

	if err != nil {
		return nil, errors.Wrap(err, "open ledger db")
	}

	l := &LevelLedger{db: db}

	if err := l.loadLocator(); err != nil {
		return nil, err
	}

	return l, nil
}

// Close releases the underlying database handle.
func (l *LevelLedger) Close() error {
	return l.db.Close()
}

func (l *LevelLedger) loadLocator() error {
	raw, err := l.db.Get(keyLocatorOrdinals, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil
	}

	if err != nil {
		return errors.Wrap(err, "load locator ordinals")
	}

	hashes := make([]chain.BlockHeaderHash, len(raw)/32)
	for i := range hashes {
		copy(hashes[i][:], raw[i*32:(i+1)*32])
	}

	l.committedHashes = hashes

	return nil
}

func (l *LevelLedger) saveLocatorLocked() error {
	raw := make([]byte, 0, len(l.committedHashes)*32)
	for _, h := range l.committedHashes {
		raw = append(raw, h[:]...)
	}

	return l.db.Put(keyLocatorOrdinals, raw, nil)
}

// ContainsSerialNumber implements Ledger.
func (l *LevelLedger) ContainsSerialNumber(sn txn.SerialNumber) bool {
	return l.has(prefixSerialNumber, sn[:])
}

// ContainsCommitment implements Ledger.
func (l *LevelLedger) ContainsCommitment(cm txn.Commitment) bool {
	return l.has(prefixCommitment, cm[:])
}

// ContainsMemorandum implements Ledger.
func (l *LevelLedger) ContainsMemorandum(memo txn.Memorandum) bool {
	return l.has(prefixMemorandum, memo[:])
}

func (l *LevelLedger) has(prefix, key []byte) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ok, _ := l.db.Has(append(append([]byte{}, prefix...), key...), nil)
	return ok
}

// TransactionConflicts implements Ledger.
func (l *LevelLedger) TransactionConflicts(tx txn.Transaction) bool {
	for _, sn := range tx.OldSerialNumbers() {
		if l.ContainsSerialNumber(sn) {
			return true
		}
	}

	for _, cm := range tx.NewCommitments() {
		if l.ContainsCommitment(cm) {
			return true
		}
	}

	return l.ContainsMemorandum(tx.Memorandum())
}

// BlockHashExists implements Ledger.
func (l *LevelLedger) BlockHashExists(hash chain.BlockHeaderHash) bool {
	return l.has(prefixBlockHash, hash[:])
}

// CurrentBlockHeight implements Ledger.
func (l *LevelLedger) CurrentBlockHeight() uint32 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	raw, err := l.db.Get(keyHeight, nil)
	if err != nil {
		return 0
	}

	return binary.LittleEndian.Uint32(raw)
}

// BlockLocatorHashes implements Ledger, returning a canonical locator:
// exponentially spaced recent hashes ending at genesis.
func (l *LevelLedger) BlockLocatorHashes() ([]chain.BlockHeaderHash, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return locatorFrom(l.committedHashes), nil
}

// locatorFrom computes a geometric-spacing locator over hashes (oldest to
// newest), always including the tip and genesis.
func locatorFrom(hashes []chain.BlockHeaderHash) []chain.BlockHeaderHash {
	n := len(hashes)
	if n == 0 {
		return nil
	}

	var locator []chain.BlockHeaderHash

	step := 1
	i := n - 1

	for i >= 0 {
		locator = append(locator, hashes[i])
		if i == 0 {
			break
		}

		i -= step
		if len(locator) >= 10 {
			step *= 2
		}

		if i < 0 {
			i = 0
		}
	}

	if locator[len(locator)-1] != hashes[0] {
		locator = append(locator, hashes[0])
	}

	return locator
}

// GetMemoryPool implements Ledger.
func (l *LevelLedger) GetMemoryPool() ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	blob, err := l.db.Get(keyMemoryPool, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, errors.Wrap(err, "read memory pool blob")
	}

	return blob, true, nil
}

// StoreToMemoryPool implements Ledger.
func (l *LevelLedger) StoreToMemoryPool(blob []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.db.Put(keyMemoryPool, blob, nil); err != nil {
		return errors.Wrap(err, "store memory pool blob")
	}

	return nil
}

// InsertAndCommit implements Ledger.
func (l *LevelLedger) InsertAndCommit(block *chain.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hash := block.Hash()

	batch := new(leveldb.Batch)
	batch.Put(append(append([]byte{}, prefixBlockHash...), hash[:]...), []byte{1})

	for _, tx := range block.Txs {
		for _, sn := range tx.OldSerialNumbers() {
			batch.Put(append(append([]byte{}, prefixSerialNumber...), sn[:]...), []byte{1})
		}

		for _, cm := range tx.NewCommitments() {
			batch.Put(append(append([]byte{}, prefixCommitment...), cm[:]...), []byte{1})
		}

		memo := tx.Memorandum()
		batch.Put(append(append([]byte{}, prefixMemorandum...), memo[:]...), []byte{1})
	}

	height := make([]byte, 4)
	binary.LittleEndian.PutUint32(height, l.currentHeightLocked()+1)
	batch.Put(keyHeight, height)

	if err := l.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "commit block")
	}

	l.committedHashes = append(l.committedHashes, hash)

	return l.saveLocatorLocked()
}

func (l *LevelLedger) currentHeightLocked() uint32 {
	raw, err := l.db.Get(keyHeight, nil)
	if err != nil {
		return 0
	}

	return binary.LittleEndian.Uint32(raw)
}
