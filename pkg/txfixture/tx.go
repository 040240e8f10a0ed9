// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package txfixture is a concrete txn.Transaction for tests: serial numbers and commitments are ristretto scalars/points
// following the teacher's pkg/core/data/transactions conventions, and the
// transaction id is their blake2b-256 digest.
package txfixture

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/bwesterb/go-ristretto"
	"github.com/dusk-network/dusksync/pkg/core/txn"
	"golang.org/x/crypto/blake2b"
)

// Tx is a minimal transaction: a list of spent serial numbers, a list of
// produced commitments, and a memorandum, each derived from ristretto
// scalars/points so the fixture exercises the same elliptic-curve types
// the teacher's transaction package does.
type Tx struct {
	SerialNumbers []ristretto.Scalar
	Commitments   []ristretto.Point
	Memo          ristretto.Scalar
}

// New derives a Tx from the given seeds: each seed produces one serial
// number and one commitment by hashing into the ristretto group, and the
// last seed derives the memorandum (with no seeds, the memorandum is left
// as the zero scalar).
func New(seeds ...[]byte) *Tx {
	tx := &Tx{}

	for _, seed := range seeds {
		var sn ristretto.Scalar
		sn.Derive(append([]byte("sn"), seed...))
		tx.SerialNumbers = append(tx.SerialNumbers, sn)

		var cmScalar ristretto.Scalar
		cmScalar.Derive(append([]byte("cm"), seed...))

		var cm ristretto.Point
		cm.ScalarMultBase(&cmScalar)
		tx.Commitments = append(tx.Commitments, cm)
	}

	if len(seeds) > 0 {
		tx.Memo.Derive(append([]byte("memo"), seeds[len(seeds)-1]...))
	}

	return tx
}

// TransactionID implements txn.Transaction: the blake2b-256 digest of
// the canonical encoding.
func (t *Tx) TransactionID() (txn.ID, error) {
	var buf []byte

	digest, err := t.encode(&buf)
	if err != nil {
		return txn.ID{}, err
	}

	return txn.ID(blake2b.Sum256(digest)), nil
}

// SizeInBytes implements txn.Transaction.
func (t *Tx) SizeInBytes() int {
	return 4 + len(t.SerialNumbers)*32 + 4 + len(t.Commitments)*32 + 32
}

// OldSerialNumbers implements txn.Transaction.
func (t *Tx) OldSerialNumbers() []txn.SerialNumber {
	out := make([]txn.SerialNumber, len(t.SerialNumbers))
	for i, sn := range t.SerialNumbers {
		out[i] = txn.SerialNumber(toArray(sn.Bytes()))
	}

	return out
}

// NewCommitments implements txn.Transaction.
func (t *Tx) NewCommitments() []txn.Commitment {
	out := make([]txn.Commitment, len(t.Commitments))
	for i, cm := range t.Commitments {
		out[i] = txn.Commitment(toArray(cm.Bytes()))
	}

	return out
}

// Memorandum implements txn.Transaction.
func (t *Tx) Memorandum() txn.Memorandum {
	return txn.Memorandum(toArray(t.Memo.Bytes()))
}

// Encode implements txn.Transaction.
func (t *Tx) Encode(w io.Writer) error {
	var buf []byte

	_, err := t.encode(&buf)
	if err != nil {
		return err
	}

	_, err = w.Write(buf)

	return err
}

func (t *Tx) encode(scratch *[]byte) ([]byte, error) {
	buf := (*scratch)[:0]

	buf = appendUint32(buf, uint32(len(t.SerialNumbers)))
	for _, sn := range t.SerialNumbers {
		buf = append(buf, sn.Bytes()...)
	}

	buf = appendUint32(buf, uint32(len(t.Commitments)))
	for _, cm := range t.Commitments {
		buf = append(buf, cm.Bytes()...)
	}

	buf = append(buf, t.Memo.Bytes()...)

	return buf, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)

	return append(buf, tmp[:]...)
}

func toArray(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)

	return out
}

// Decode reads back a Tx previously written by Encode. It cannot recover
// the original ristretto scalar/point structure from raw bytes alone, so
// it stores the raw 32-byte groups directly; this is sufficient for the
// mempool snapshot round-trip, which only needs TransactionID,
// SizeInBytes, OldSerialNumbers, NewCommitments and Memorandum to be
// stable, not a faithful elliptic-curve reconstruction.
func Decode(r *bytes.Reader) (txn.Transaction, error) {
	var nSN uint32
	if err := binary.Read(r, binary.LittleEndian, &nSN); err != nil {
		return nil, err
	}

	raw := &rawTx{}

	for i := uint32(0); i < nSN; i++ {
		var b [32]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}

		raw.serialNumbers = append(raw.serialNumbers, b)
	}

	var nCM uint32
	if err := binary.Read(r, binary.LittleEndian, &nCM); err != nil {
		return nil, err
	}

	for i := uint32(0); i < nCM; i++ {
		var b [32]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}

		raw.commitments = append(raw.commitments, b)
	}

	var memo [32]byte
	if _, err := io.ReadFull(r, memo[:]); err != nil {
		return nil, err
	}

	raw.memo = memo

	return raw, nil
}

// rawTx is what Decode reconstructs: the same wire shape as Tx, without
// the ristretto group structure, since a decoded transaction never needs
// to be re-signed or re-derived, only compared and re-encoded.
type rawTx struct {
	serialNumbers [][32]byte
	commitments   [][32]byte
	memo          [32]byte
}

func (r *rawTx) TransactionID() (txn.ID, error) {
	var buf []byte

	buf = appendUint32(buf, uint32(len(r.serialNumbers)))
	for _, sn := range r.serialNumbers {
		buf = append(buf, sn[:]...)
	}

	buf = appendUint32(buf, uint32(len(r.commitments)))
	for _, cm := range r.commitments {
		buf = append(buf, cm[:]...)
	}

	buf = append(buf, r.memo[:]...)

	return txn.ID(blake2b.Sum256(buf)), nil
}

func (r *rawTx) SizeInBytes() int {
	return 4 + len(r.serialNumbers)*32 + 4 + len(r.commitments)*32 + 32
}

func (r *rawTx) OldSerialNumbers() []txn.SerialNumber {
	out := make([]txn.SerialNumber, len(r.serialNumbers))
	for i, sn := range r.serialNumbers {
		out[i] = txn.SerialNumber(sn)
	}

	return out
}

func (r *rawTx) NewCommitments() []txn.Commitment {
	out := make([]txn.Commitment, len(r.commitments))
	for i, cm := range r.commitments {
		out[i] = txn.Commitment(cm)
	}

	return out
}

func (r *rawTx) Memorandum() txn.Memorandum { return txn.Memorandum(r.memo) }

func (r *rawTx) Encode(w io.Writer) error {
	var buf []byte

	buf = appendUint32(buf, uint32(len(r.serialNumbers)))
	for _, sn := range r.serialNumbers {
		buf = append(buf, sn[:]...)
	}

	buf = appendUint32(buf, uint32(len(r.commitments)))
	for _, cm := range r.commitments {
		buf = append(buf, cm[:]...)
	}

	buf = append(buf, r.memo[:]...)

	_, err := w.Write(buf)

	return err
}
