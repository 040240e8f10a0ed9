// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package mempool

import (
	"sync"

	"github.com/dusk-network/dusksync/pkg/core/txn"
)

// Entry pairs a transaction with the on-wire byte length it was admitted
// with (spec.md §3: "supplied by the admitting caller rather than
// recomputed").
type Entry struct {
	Tx          txn.Transaction
	SizeInBytes int
}

// Pool is the storage backend a Mempool drives. Splitting it out of
// Mempool lets the admission/candidate-selection logic in mempool.go stay
// oblivious to the backing structure, following the teacher's Pool/HashMap
// split; it also lets secondary sn/cm/memo indices (spec.md §9) live next
// to the data they index instead of being recomputed on every admission.
type Pool interface {
	// Put inserts e, keyed by its transaction's id. Indices are updated
	// to match.
	Put(e Entry) error
	// Get returns the entry stored under id, if any.
	Get(id txn.ID) (Entry, bool)
	// Delete removes the entry stored under id, returning it if present.
	Delete(id txn.ID) (Entry, bool)
	// Contains reports whether id is stored.
	Contains(id txn.ID) bool
	// Len returns the number of stored entries.
	Len() int
	// TotalSizeInBytes returns the sum of every stored entry's
	// SizeInBytes.
	TotalSizeInBytes() int
	// Range calls fn once per stored entry, in the Pool's ordering
	// (spec.md §9: exposed so iteration order need not be Go's
	// unspecified map order). fn returning an error stops the range and
	// surfaces that error.
	Range(fn func(id txn.ID, e Entry) error) error
	// ConflictsWithHeld reports whether tx shares a serial number,
	// commitment, or memorandum with anything currently stored.
	ConflictsWithHeld(tx txn.Transaction) bool
}

// HashMap is the one Pool implementation this module ships: a primary
// map plus three secondary indices (serial number / commitment /
// memorandum -> transaction id) so ConflictsWithHeld and admission are
// O(1) per key, per spec.md §9's recommended fix to the teacher's
// original O(n·m) linear scan.
type HashMap struct {
	mu sync.RWMutex

	entries map[txn.ID]Entry
	order   []txn.ID

	bySerialNumber map[txn.SerialNumber]txn.ID
	byCommitment   map[txn.Commitment]txn.ID
	byMemorandum   map[txn.Memorandum]txn.ID

	totalSize int
}

// NewHashMap returns an empty HashMap, preallocated to capacity entries.
func NewHashMap(capacity int) *HashMap {
	return &HashMap{
		entries:        make(map[txn.ID]Entry, capacity),
		order:          make([]txn.ID, 0, capacity),
		bySerialNumber: make(map[txn.SerialNumber]txn.ID, capacity),
		byCommitment:   make(map[txn.Commitment]txn.ID, capacity),
		byMemorandum:   make(map[txn.Memorandum]txn.ID, capacity),
	}
}

// Put implements Pool.
func (h *HashMap) Put(e Entry) error {
	id, err := e.Tx.TransactionID()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.entries[id]; exists {
		return nil
	}

	h.entries[id] = e
	h.order = append(h.order, id)
	h.totalSize += e.SizeInBytes

	for _, sn := range e.Tx.OldSerialNumbers() {
		h.bySerialNumber[sn] = id
	}

	for _, cm := range e.Tx.NewCommitments() {
		h.byCommitment[cm] = id
	}

	h.byMemorandum[e.Tx.Memorandum()] = id

	return nil
}

// Get implements Pool.
func (h *HashMap) Get(id txn.ID) (Entry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.entries[id]

	return e, ok
}

// Delete implements Pool.
func (h *HashMap) Delete(id txn.ID) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[id]
	if !ok {
		return Entry{}, false
	}

	delete(h.entries, id)
	h.totalSize -= e.SizeInBytes

	for i, o := range h.order {
		if o == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}

	for _, sn := range e.Tx.OldSerialNumbers() {
		delete(h.bySerialNumber, sn)
	}

	for _, cm := range e.Tx.NewCommitments() {
		delete(h.byCommitment, cm)
	}

	delete(h.byMemorandum, e.Tx.Memorandum())

	return e, true
}

// Contains implements Pool.
func (h *HashMap) Contains(id txn.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.entries[id]

	return ok
}

// Len implements Pool.
func (h *HashMap) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.entries)
}

// TotalSizeInBytes implements Pool.
func (h *HashMap) TotalSizeInBytes() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.totalSize
}

// Range implements Pool, iterating in admission order (deterministic,
// unlike raw Go map iteration).
func (h *HashMap) Range(fn func(id txn.ID, e Entry) error) error {
	h.mu.RLock()
	order := append([]txn.ID{}, h.order...)
	h.mu.RUnlock()

	for _, id := range order {
		h.mu.RLock()
		e, ok := h.entries[id]
		h.mu.RUnlock()

		if !ok {
			continue
		}

		if err := fn(id, e); err != nil {
			return err
		}
	}

	return nil
}

// ConflictsWithHeld implements Pool.
func (h *HashMap) ConflictsWithHeld(tx txn.Transaction) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sn := range tx.OldSerialNumbers() {
		if _, ok := h.bySerialNumber[sn]; ok {
			return true
		}
	}

	for _, cm := range tx.NewCommitments() {
		if _, ok := h.byCommitment[cm]; ok {
			return true
		}
	}

	_, ok := h.byMemorandum[tx.Memorandum()]

	return ok
}
