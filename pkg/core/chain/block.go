// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dusk-network/dusksync/pkg/core/txn"
)

// Block is the minimal, concrete block representation this module needs to
// exercise the ledger and the sync master in tests.
// Full block validity (proof-of-work, consensus rules) is out of scope;
// see spec.md §1.
type Block struct {
	// Header holds the header bytes as given. Encode pads or truncates
	// them to exactly BlockHeaderSize bytes on the wire; Hash hashes them
	// as stored.
	Header []byte
	Txs    []txn.Transaction
}

// Hash derives the block's BlockHeaderHash from its header bytes.
func (b *Block) Hash() BlockHeaderHash {
	return ComputeHeaderHash(b.Header)
}

// Encode writes the header followed by a count-prefixed list of encoded
// transactions.
func (b *Block) Encode(w io.Writer) error {
	header := make([]byte, BlockHeaderSize)
	copy(header, b.Header)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(b.Txs))); err != nil {
		return fmt.Errorf("write tx count: %w", err)
	}

	for i, tx := range b.Txs {
		if err := tx.Encode(w); err != nil {
			return fmt.Errorf("encode tx %d: %w", i, err)
		}
	}

	return nil
}

// DecodeBlock parses a block previously written by Encode, using decodeTx
// to turn each transaction's remaining bytes back into a txn.Transaction.
// Transaction decoding is delegated to the caller because this package has
// no opinion on the concrete transaction scheme in use.
func DecodeBlock(raw []byte, decodeTx func(r io.Reader) (txn.Transaction, error)) (*Block, error) {
	if len(raw) < BlockHeaderSize+4 {
		return nil, fmt.Errorf("block too short: %d bytes", len(raw))
	}

	r := bytes.NewReader(raw)

	header := make([]byte, BlockHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read tx count: %w", err)
	}

	txs := make([]txn.Transaction, 0, count)

	for i := uint32(0); i < count; i++ {
		tx, err := decodeTx(r)
		if err != nil {
			return nil, fmt.Errorf("decode tx %d: %w", i, err)
		}

		txs = append(txs, tx)
	}

	return &Block{Header: header, Txs: txs}, nil
}
