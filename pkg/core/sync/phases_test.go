// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package sync

import (
	"testing"

	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/ledger"
	"github.com/dusk-network/dusksync/pkg/core/peerbook"
	"github.com/stretchr/testify/require"
)

func hashOf(b byte) chain.BlockHeaderHash {
	var h chain.BlockHeaderHash
	h[0] = b

	return h
}

// P9: column-major ordering of [(A,[h1,h2,h3]),(B,[h1,h4])] yields
// [h1,h2,h4,h3].
func TestOrderBlockHashesColumnMajor(t *testing.T) {
	h1, h2, h3, h4 := hashOf(1), hashOf(2), hashOf(3), hashOf(4)

	rows := []peerHashes{
		{Address: "A", Hashes: []chain.BlockHeaderHash{h1, h2, h3}},
		{Address: "B", Hashes: []chain.BlockHeaderHash{h1, h4}},
	}

	got := orderBlockHashes(rows)

	require.Equal(t, []chain.BlockHeaderHash{h1, h2, h4, h3}, got)
}

func TestOrderBlockHashesEmpty(t *testing.T) {
	require.Empty(t, orderBlockHashes(nil))
}

func TestBlockPeerMapCollectsAdvertisers(t *testing.T) {
	h1, h2 := hashOf(1), hashOf(2)

	rows := []peerHashes{
		{Address: "A", Hashes: []chain.BlockHeaderHash{h1}},
		{Address: "B", Hashes: []chain.BlockHeaderHash{h1, h2}},
	}

	peerMap := blockPeerMap(rows)

	require.ElementsMatch(t, []string{"A", "B"}, peerMap[h1])
	require.ElementsMatch(t, []string{"B"}, peerMap[h2])
}

func TestPlanPeerAssignmentGroupsByChosenPeer(t *testing.T) {
	h1, h2 := hashOf(1), hashOf(2)

	order := []chain.BlockHeaderHash{h1, h2}
	peerMap := map[chain.BlockHeaderHash][]string{
		h1: {"only-peer"},
		h2: {"only-peer"},
	}

	peerList, hashToPeer, peerToHashes := planPeerAssignment(order, peerMap)

	require.Equal(t, []string{"only-peer"}, peerList)
	require.Equal(t, "only-peer", hashToPeer[h1])
	require.Equal(t, "only-peer", hashToPeer[h2])
	require.ElementsMatch(t, []chain.BlockHeaderHash{h1, h2}, peerToHashes["only-peer"])
}

func TestPlanPeerAssignmentSkipsHashesWithNoAdvertiser(t *testing.T) {
	h1 := hashOf(1)

	peerList, hashToPeer, peerToHashes := planPeerAssignment(
		[]chain.BlockHeaderHash{h1},
		map[chain.BlockHeaderHash][]string{},
	)

	require.Empty(t, peerList)
	require.Empty(t, hashToPeer)
	require.Empty(t, peerToHashes)
}

// P11: ingestion processes blocks in the planned order and continues past
// gaps instead of aborting.
func TestIngestOrderedWithGaps(t *testing.T) {
	book := newFakePeerBook(
		peerbook.PeerSnapshot{Address: "peer-a"},
		peerbook.PeerSnapshot{Address: "peer-b"},
		peerbook.PeerSnapshot{Address: "peer-c"},
	)

	node := &fakeNode{peerBook: book, ledger: ledger.NewMapLedger()}
	master, _ := New(node)

	raw1 := []byte("ingest-block-one")
	raw3 := []byte("ingest-block-three")

	hash1 := chain.ComputeHeaderHash(raw1)
	hash2 := hashOf(99) // never delivered: a gap
	hash3 := chain.ComputeHeaderHash(raw3)

	order := []chain.BlockHeaderHash{hash1, hash2, hash3}
	hashToPeer := map[chain.BlockHeaderHash]string{
		hash1: "peer-a",
		hash2: "peer-b",
		hash3: "peer-c",
	}

	blocks := []syncBlock{
		{Address: "peer-a", Block: raw1},
		{Address: "peer-c", Block: raw3},
	}

	err := master.ingest([]string{"peer-a", "peer-b", "peer-c"}, order, hashToPeer, blocks)
	require.NoError(t, err)

	require.Len(t, node.processed, 2)
	require.Equal(t, raw1, node.processed[0].raw)
	require.Equal(t, raw3, node.processed[1].raw)
	require.True(t, node.finished)

	for _, addr := range []string{"peer-a", "peer-b", "peer-c"} {
		require.True(t, book.handles[addr].cancelled)
	}
}
