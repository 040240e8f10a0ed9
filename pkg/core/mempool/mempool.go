// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package mempool is a storage for the chain transactions that are valid
// according to the current chain state and can be included in the next
// block. It enforces the uniqueness invariants spec.md §3 describes
// (no shared serial numbers, commitments, or memoranda, either within the
// pool or against the committed ledger).
package mempool

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dusk-network/dusksync/pkg/config"
	"github.com/dusk-network/dusksync/pkg/core/ledger"
	"github.com/dusk-network/dusksync/pkg/core/txn"
	"github.com/pkg/errors"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithFields(logger.Fields{"prefix": "mempool"})

// Order reorders a candidate-selection scan, the "ordering hook" spec.md
// §9 calls for so candidate selection need not depend on Go's unspecified
// map iteration order. The default is the Pool's own admission order.
type Order func(entries []scanEntry) []scanEntry

type scanEntry struct {
	ID    txn.ID
	Entry Entry
}

// Mempool is the synchronous, non-suspending core described in spec.md
// §4.1/§5. Every method here may be called concurrently; writers
// (Insert/Remove/RemoveByHash) are serialized by the Pool's own lock.
// Cleanse replaces the Pool wholesale, so every access to m.pool goes
// through mu as well.
type Mempool struct {
	mu sync.RWMutex

	pool Pool

	// decodeTx turns one persisted transaction's bytes back into a
	// txn.Transaction; supplied by the caller since this package has no
	// opinion on the concrete transaction scheme.
	decodeTx func(r *bytes.Reader) (txn.Transaction, error)
}

// New returns an empty Mempool. decodeTx is used by FromStorage to
// reconstitute persisted transactions.
func New(decodeTx func(r *bytes.Reader) (txn.Transaction, error)) *Mempool {
	cfg := config.Get().Mempool

	return &Mempool{
		pool:     NewHashMap(cfg.HashMapPreallocTxs),
		decodeTx: decodeTx,
	}
}

// FromStorage reads the persisted mempool blob from the ledger's memory
// pool slot and re-admits each transaction against the current ledger.
// Absence of a persisted blob is not an error; a blob that fails to
// decode degrades to an empty pool rather than propagating the decode
// error, per spec.md §4.1.
func FromStorage(l ledger.Ledger, decodeTx func(r *bytes.Reader) (txn.Transaction, error)) (*Mempool, error) {
	m := New(decodeTx)

	blob, ok, err := l.GetMemoryPool()
	if err != nil {
		return nil, errors.Wrap(err, "read persisted mempool")
	}

	if !ok {
		return m, nil
	}

	txs, err := decodeSnapshot(blob, decodeTx)
	if err != nil {
		log.WithError(err).Warn("persisted mempool blob failed to decode, starting empty")
		return m, nil
	}

	for _, e := range txs {
		if _, _, err := m.Insert(l, e); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// currentPool returns the current Pool, safe against a concurrent Cleanse swap.
func (m *Mempool) currentPool() Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.pool
}

// Store serializes every current entry into the snapshot blob format and
// writes it to the ledger's memory pool slot.
func (m *Mempool) Store(l ledger.Ledger) error {
	var entries []Entry

	if err := m.currentPool().Range(func(_ txn.ID, e Entry) error {
		entries = append(entries, e)
		return nil
	}); err != nil {
		return err
	}

	blob, err := encodeSnapshot(entries)
	if err != nil {
		return errors.Wrap(err, "encode mempool snapshot")
	}

	if err := l.StoreToMemoryPool(blob); err != nil {
		return errors.Wrap(err, "store mempool snapshot")
	}

	return nil
}

// Insert admits entry into the pool if it passes every check in spec.md
// §4.1's algorithm, in order: self-consistency, already-present,
// intra-pool conflict, ledger conflict. ok is false for any rejection;
// err is non-nil only for transaction-id derivation or ledger I/O
// failures.
func (m *Mempool) Insert(l ledger.Ledger, e Entry) (id txn.ID, ok bool, err error) {
	tx := e.Tx

	if hasDuplicateSerialNumbers(tx.OldSerialNumbers()) || hasDuplicateCommitments(tx.NewCommitments()) {
		return txn.ID{}, false, nil
	}

	id, err = tx.TransactionID()
	if err != nil {
		return txn.ID{}, false, errors.Wrap(ErrTransactionID, err.Error())
	}

	pool := m.currentPool()

	if pool.Contains(id) {
		return id, false, nil
	}

	if pool.ConflictsWithHeld(tx) {
		return id, false, nil
	}

	if l.TransactionConflicts(tx) {
		return id, false, nil
	}

	if err := pool.Put(e); err != nil {
		return id, false, errors.Wrap(ErrTransactionID, err.Error())
	}

	return id, true, nil
}

// Remove removes the entry matching entry's transaction id, if present,
// decrementing the pool's total size by the *stored* entry's size (not
// the argument's — spec.md §9 flags the original's use of the argument's
// size as brittle).
func (m *Mempool) Remove(entry Entry) (txn.ID, bool, error) {
	id, err := entry.Tx.TransactionID()
	if err != nil {
		return txn.ID{}, false, errors.Wrap(ErrTransactionID, err.Error())
	}

	if _, ok := m.currentPool().Delete(id); !ok {
		return txn.ID{}, false, nil
	}

	return id, true, nil
}

// RemoveByHash removes and returns the entry stored under id, if present.
func (m *Mempool) RemoveByHash(id txn.ID) (Entry, bool, error) {
	e, ok := m.currentPool().Delete(id)
	return e, ok, nil
}

// Contains reports whether an entry with the same id as entry's
// transaction is stored.
func (m *Mempool) Contains(entry Entry) bool {
	id, err := entry.Tx.TransactionID()
	if err != nil {
		return false
	}

	return m.currentPool().Contains(id)
}

// Get returns the entry stored under id, if any.
func (m *Mempool) Get(id txn.ID) (Entry, bool) { return m.currentPool().Get(id) }

// Range calls fn once per stored entry, in the pool's own order.
func (m *Mempool) Range(fn func(id txn.ID, e Entry) error) error {
	return m.currentPool().Range(fn)
}

// DecodeEntry decodes raw transaction bytes with the configured decoder
// and wraps the result into an Entry sized by len(raw), the shape an
// RPC-submitted transaction arrives in.
func (m *Mempool) DecodeEntry(raw []byte) (Entry, error) {
	tx, err := m.decodeTx(bytes.NewReader(raw))
	if err != nil {
		return Entry{}, err
	}

	return Entry{Tx: tx, SizeInBytes: len(raw)}, nil
}

// Len returns the number of stored entries.
func (m *Mempool) Len() int { return m.currentPool().Len() }

// TotalSizeInBytes returns the sum of every stored entry's size.
func (m *Mempool) TotalSizeInBytes() int { return m.currentPool().TotalSizeInBytes() }

// Cleanse rebuilds the pool by re-admitting every current entry against
// the (possibly updated) ledger, dropping any that no longer pass
// admission. The swap to the rebuilt pool is atomic: readers never see a
// partially-rebuilt pool.
func (m *Mempool) Cleanse(l ledger.Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current []Entry

	if err := m.pool.Range(func(_ txn.ID, e Entry) error {
		current = append(current, e)
		return nil
	}); err != nil {
		return err
	}

	fresh := NewHashMap(config.Get().Mempool.HashMapPreallocTxs)

	for _, e := range current {
		if _, _, err := insertInto(fresh, l, e); err != nil {
			return err
		}
	}

	m.pool = fresh

	return nil
}

// insertInto runs the same admission algorithm as Mempool.Insert but
// against an arbitrary Pool, so Cleanse can rebuild without going through
// the live pool it is replacing.
func insertInto(p Pool, l ledger.Ledger, e Entry) (txn.ID, bool, error) {
	tx := e.Tx

	if hasDuplicateSerialNumbers(tx.OldSerialNumbers()) || hasDuplicateCommitments(tx.NewCommitments()) {
		return txn.ID{}, false, nil
	}

	id, err := tx.TransactionID()
	if err != nil {
		return txn.ID{}, false, errors.Wrap(ErrTransactionID, err.Error())
	}

	if p.Contains(id) {
		return id, false, nil
	}

	if p.ConflictsWithHeld(tx) {
		return id, false, nil
	}

	if l.TransactionConflicts(tx) {
		return id, false, nil
	}

	if err := p.Put(e); err != nil {
		return id, false, errors.Wrap(ErrTransactionID, err.Error())
	}

	return id, true, nil
}

// ReconcileWithLedger drops any pool entry already committed to l. It
// supplements spec.md's Cleanse for the boot-time case: a mempool
// snapshot restored after the node was offline while blocks kept landing
// elsewhere (see SPEC_FULL.md "Supplemented features").
func (m *Mempool) ReconcileWithLedger(l ledger.Ledger) error {
	pool := m.currentPool()

	var stale []txn.ID

	if err := pool.Range(func(id txn.ID, e Entry) error {
		if l.TransactionConflicts(e.Tx) {
			stale = append(stale, id)
		}

		return nil
	}); err != nil {
		return err
	}

	for _, id := range stale {
		pool.Delete(id)
	}

	if len(stale) > 0 {
		log.WithField("count", len(stale)).Info("dropped transactions already committed while offline")
	}

	return nil
}

// GetCandidates selects a subset of transactions whose combined size does
// not exceed maxSize minus the reserved block-header and coinbase
// budgets, skipping ledger conflicts and conflicts with already-selected
// candidates, per spec.md §4.1's candidate-selection algorithm.
func (m *Mempool) GetCandidates(l ledger.Ledger, maxSize, blockHeaderSize int, order Order) ([]txn.Transaction, error) {
	maxPayload := maxSize - blockHeaderSize - config.Get().Mempool.CoinbaseSize
	if maxPayload < 0 {
		maxPayload = 0
	}

	entries, err := m.scan(order)
	if err != nil {
		return nil, err
	}

	var (
		accumulated int
		selected    []txn.Transaction
	)

	for _, se := range entries {
		if accumulated+se.Entry.SizeInBytes > maxPayload {
			continue
		}

		if l.TransactionConflicts(se.Entry.Tx) {
			continue
		}

		if conflictsWithSelected(selected, se.Entry.Tx) {
			continue
		}

		accumulated += se.Entry.SizeInBytes
		selected = append(selected, se.Entry.Tx)
	}

	return selected, nil
}

// GetCandidatesBySize returns a running-total view bounded by maxTxsSize,
// without the block-header/coinbase deduction GetCandidates applies. It
// is the supplemented feature from the con-quistador fork's
// processGetMempoolTxsBySizeRequest (SPEC_FULL.md).
func (m *Mempool) GetCandidatesBySize(order Order, maxTxsSize int) ([]txn.Transaction, error) {
	entries, err := m.scan(order)
	if err != nil {
		return nil, err
	}

	var (
		total    int
		selected []txn.Transaction
	)

	for _, se := range entries {
		total += se.Entry.SizeInBytes
		if total > maxTxsSize {
			break
		}

		selected = append(selected, se.Entry.Tx)
	}

	return selected, nil
}

func (m *Mempool) scan(order Order) ([]scanEntry, error) {
	var entries []scanEntry

	if err := m.currentPool().Range(func(id txn.ID, e Entry) error {
		entries = append(entries, scanEntry{ID: id, Entry: e})
		return nil
	}); err != nil {
		return nil, err
	}

	if order != nil {
		entries = order(entries)
	}

	return entries, nil
}

func conflictsWithSelected(selected []txn.Transaction, tx txn.Transaction) bool {
	snSet := make(map[txn.SerialNumber]struct{})
	cmSet := make(map[txn.Commitment]struct{})
	memoSet := make(map[txn.Memorandum]struct{})

	for _, s := range selected {
		for _, sn := range s.OldSerialNumbers() {
			snSet[sn] = struct{}{}
		}

		for _, cm := range s.NewCommitments() {
			cmSet[cm] = struct{}{}
		}

		memoSet[s.Memorandum()] = struct{}{}
	}

	for _, sn := range tx.OldSerialNumbers() {
		if _, ok := snSet[sn]; ok {
			return true
		}
	}

	for _, cm := range tx.NewCommitments() {
		if _, ok := cmSet[cm]; ok {
			return true
		}
	}

	_, ok := memoSet[tx.Memorandum()]

	return ok
}

func hasDuplicateSerialNumbers(sns []txn.SerialNumber) bool {
	seen := make(map[txn.SerialNumber]struct{}, len(sns))

	for _, sn := range sns {
		if _, ok := seen[sn]; ok {
			return true
		}

		seen[sn] = struct{}{}
	}

	return false
}

func hasDuplicateCommitments(cms []txn.Commitment) bool {
	seen := make(map[txn.Commitment]struct{}, len(cms))

	for _, cm := range cms {
		if _, ok := seen[cm]; ok {
			return true
		}

		seen[cm] = struct{}{}
	}

	return false
}

// encodeSnapshot writes the length-prefixed concatenation of serialized
// transactions, the persisted mempool snapshot format from spec.md §6.
func encodeSnapshot(entries []Entry) ([]byte, error) {
	buf := new(bytes.Buffer)

	for _, e := range entries {
		var txBuf bytes.Buffer
		if err := e.Tx.Encode(&txBuf); err != nil {
			return nil, fmt.Errorf("encode tx: %w", err)
		}

		if err := binary.Write(buf, binary.LittleEndian, uint32(txBuf.Len())); err != nil {
			return nil, err
		}

		if _, err := buf.Write(txBuf.Bytes()); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func decodeSnapshot(blob []byte, decodeTx func(r *bytes.Reader) (txn.Transaction, error)) ([]Entry, error) {
	r := bytes.NewReader(blob)

	var entries []Entry

	for r.Len() > 0 {
		var size uint32
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, err
		}

		txBytes := make([]byte, size)
		if _, err := io.ReadFull(r, txBytes); err != nil {
			return nil, err
		}

		tx, err := decodeTx(bytes.NewReader(txBytes))
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{Tx: tx, SizeInBytes: int(size)})
	}

	return entries, nil
}

// DefaultOrder is the Pool's own admission order, already deterministic
// (spec.md §9: "do not reproduce iteration-order dependence"). Passing
// nil to GetCandidates/GetCandidatesBySize has the same effect.
func DefaultOrder(entries []scanEntry) []scanEntry { return entries }

// LargestFirstOrder is an alternative Order a caller can pass to
// GetCandidates/GetCandidatesBySize to prioritize larger transactions,
// exercising the ordering hook with a second concrete policy.
func LargestFirstOrder(entries []scanEntry) []scanEntry {
	sorted := append([]scanEntry{}, entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Entry.SizeInBytes > sorted[j].Entry.SizeInBytes
	})

	return sorted
}
