// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package wire holds the sync-relevant peer payload types and their
// length-prefixed binary encoding. Concrete framing of the wider peer
// protocol belongs to the outer network layer; this package only needs to
// round-trip the handful of payloads the sync master and inbound router
// exchange.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dusk-network/dusksync/pkg/core/chain"
)

// Kind tags the concrete type carried by a Payload.
type Kind byte

// Payload kinds, per spec.md §6.
const (
	KindPing Kind = iota + 1
	KindPong
	KindGetSync
	KindSync
	KindGetBlocks
	KindSyncBlock
	KindInv
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	case KindGetSync:
		return "GetSync"
	case KindSync:
		return "Sync"
	case KindGetBlocks:
		return "GetBlocks"
	case KindSyncBlock:
		return "SyncBlock"
	case KindInv:
		return "Inv"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Payload is the tagged union of messages this module's components send
// and receive.
type Payload struct {
	Kind Kind

	// Height carries Ping's advertised block height.
	Height uint32

	// Hashes carries GetSync/Sync/GetBlocks's block header hash list.
	Hashes []chain.BlockHeaderHash

	// Block carries SyncBlock's raw serialized block bytes.
	Block []byte

	// InvID carries Inv's inventory item id (e.g. a mempool tx id).
	InvID []byte
}

// Ping builds a Ping payload advertising height.
func Ping(height uint32) Payload { return Payload{Kind: KindPing, Height: height} }

// Pong builds a Pong payload.
func Pong() Payload { return Payload{Kind: KindPong} }

// GetSync builds a GetSync payload carrying a block locator.
func GetSync(locator []chain.BlockHeaderHash) Payload {
	return Payload{Kind: KindGetSync, Hashes: locator}
}

// Sync builds a Sync payload carrying the hashes found after a locator.
func Sync(hashes []chain.BlockHeaderHash) Payload {
	return Payload{Kind: KindSync, Hashes: hashes}
}

// GetBlocks builds a GetBlocks payload requesting the given hashes.
func GetBlocks(hashes []chain.BlockHeaderHash) Payload {
	return Payload{Kind: KindGetBlocks, Hashes: hashes}
}

// SyncBlock builds a SyncBlock payload carrying one serialized block.
func SyncBlock(raw []byte) Payload {
	return Payload{Kind: KindSyncBlock, Block: raw}
}

// Inv builds an inventory advertisement payload for a single item id.
func Inv(id []byte) Payload {
	return Payload{Kind: KindInv, InvID: id}
}

// Encode writes the payload's length-prefixed binary form.
func (p Payload) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, p.Kind); err != nil {
		return err
	}

	switch p.Kind {
	case KindPing:
		return binary.Write(w, binary.LittleEndian, p.Height)
	case KindPong:
		return nil
	case KindGetSync, KindSync, KindGetBlocks:
		return writeHashes(w, p.Hashes)
	case KindSyncBlock:
		return writeBytes(w, p.Block)
	case KindInv:
		return writeBytes(w, p.InvID)
	default:
		return fmt.Errorf("wire: encode: unknown payload kind %v", p.Kind)
	}
}

func writeHashes(w io.Writer, hashes []chain.BlockHeaderHash) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(hashes))); err != nil {
		return err
	}

	for _, h := range hashes {
		if _, err := w.Write(h[:]); err != nil {
			return err
		}
	}

	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}

	_, err := w.Write(b)
	return err
}

// Decode parses a Payload previously written by Encode.
func Decode(raw []byte) (Payload, error) {
	r := bytes.NewReader(raw)

	var kind Kind
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return Payload{}, fmt.Errorf("wire: decode kind: %w", err)
	}

	switch kind {
	case KindPing:
		var height uint32
		if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
			return Payload{}, fmt.Errorf("wire: decode ping: %w", err)
		}

		return Ping(height), nil
	case KindPong:
		return Pong(), nil
	case KindGetSync, KindSync, KindGetBlocks:
		hashes, err := readHashes(r)
		if err != nil {
			return Payload{}, fmt.Errorf("wire: decode %v: %w", kind, err)
		}

		return Payload{Kind: kind, Hashes: hashes}, nil
	case KindSyncBlock:
		b, err := readBytes(r)
		if err != nil {
			return Payload{}, fmt.Errorf("wire: decode sync block: %w", err)
		}

		return SyncBlock(b), nil
	case KindInv:
		id, err := readBytes(r)
		if err != nil {
			return Payload{}, fmt.Errorf("wire: decode inv: %w", err)
		}

		return Inv(id), nil
	default:
		return Payload{}, fmt.Errorf("wire: decode: unknown payload kind %d", kind)
	}
}

func readHashes(r io.Reader) ([]chain.BlockHeaderHash, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}

	hashes := make([]chain.BlockHeaderHash, n)

	for i := range hashes {
		if _, err := io.ReadFull(r, hashes[i][:]); err != nil {
			return nil, err
		}
	}

	return hashes, nil
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}

	return b, nil
}
