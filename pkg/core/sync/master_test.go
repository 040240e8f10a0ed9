// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package sync

import (
	"context"
	"testing"

	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/ledger"
	"github.com/dusk-network/dusksync/pkg/core/peerbook"
	"github.com/dusk-network/dusksync/pkg/core/wire"
	"github.com/stretchr/testify/require"
)

type fakePeerHandle struct {
	address   string
	sent      []wire.Payload
	expecting uint32
	cancelled bool
}

func (h *fakePeerHandle) SendPayload(_ context.Context, p wire.Payload) error {
	h.sent = append(h.sent, p)
	return nil
}

func (h *fakePeerHandle) ExpectingSyncBlocks(n uint32) { h.expecting = n }
func (h *fakePeerHandle) CancelSync()                  { h.cancelled = true }
func (h *fakePeerHandle) RecordPingSent()              {}
func (h *fakePeerHandle) RecordPong() (uint64, bool)   { return 0, true }
func (h *fakePeerHandle) RecordPing(uint32)            {}
func (h *fakePeerHandle) RecordProtocolViolation()     {}

type fakePeerBook struct {
	snapshots []peerbook.PeerSnapshot
	handles   map[string]*fakePeerHandle
}

func newFakePeerBook(snapshots ...peerbook.PeerSnapshot) *fakePeerBook {
	handles := make(map[string]*fakePeerHandle, len(snapshots))
	for _, s := range snapshots {
		handles[s.Address] = &fakePeerHandle{address: s.Address}
	}

	return &fakePeerBook{snapshots: snapshots, handles: handles}
}

func (b *fakePeerBook) ConnectedPeersSnapshot() []peerbook.PeerSnapshot { return b.snapshots }

func (b *fakePeerBook) GetPeerHandle(address string) (peerbook.PeerHandle, bool) {
	h, ok := b.handles[address]
	return h, ok
}

type fakeNode struct {
	peerBook peerbook.PeerBook
	ledger   ledger.Ledger

	processed []processedBlock
	finished  bool
}

type processedBlock struct {
	peer          string
	raw           []byte
	nonSequential bool
}

func (n *fakeNode) PeerBook() peerbook.PeerBook { return n.peerBook }
func (n *fakeNode) Ledger() ledger.Ledger       { return n.ledger }

func (n *fakeNode) ProcessReceivedBlock(peer string, raw []byte, nonSequential bool) error {
	n.processed = append(n.processed, processedBlock{peer: peer, raw: raw, nonSequential: nonSequential})
	return nil
}

func (n *fakeNode) FinishedSyncingBlocks() { n.finished = true }

// scenario 6: sync with no tall peers.
func TestRunNoTallPeers(t *testing.T) {
	book := newFakePeerBook(peerbook.PeerSnapshot{
		Address: "peer-same-height",
		Quality: peerbook.Quality{BlockHeight: 0},
	})

	node := &fakeNode{peerBook: book, ledger: ledger.NewMapLedger()}

	master, _ := New(node)

	err := master.Run(context.Background())
	require.NoError(t, err)

	require.Empty(t, book.handles["peer-same-height"].sent)
	require.False(t, node.finished)
}

// Full cycle: one peer ahead reports two hashes, delivers both blocks, and
// ingestion hands them to the node in the planned order (P9/P10/P11 acting
// together through Run).
func TestRunFullCycleSinglePeer(t *testing.T) {
	book := newFakePeerBook(peerbook.PeerSnapshot{
		Address: "peer-ahead",
		Quality: peerbook.Quality{BlockHeight: 5},
	})

	node := &fakeNode{peerBook: book, ledger: ledger.NewMapLedger()}

	master, sendCh := New(node)

	raw1 := []byte("raw-block-one-full-cycle")
	raw2 := []byte("raw-block-two-full-cycle")

	hash1 := chain.ComputeHeaderHash(raw1)
	hash2 := chain.ComputeHeaderHash(raw2)

	// pre-populate the buffered inbound queue so Run never has to wait on
	// a real timer: AwaitHashes and AwaitBlocks each find what they need
	// already queued.
	sendCh <- BlockHashes("peer-ahead", []chain.BlockHeaderHash{hash1, hash2})
	sendCh <- Block("peer-ahead", raw1)
	sendCh <- Block("peer-ahead", raw2)

	err := master.Run(context.Background())
	require.NoError(t, err)

	require.True(t, node.finished)
	require.Len(t, node.processed, 2)
	require.Equal(t, raw1, node.processed[0].raw)
	require.Equal(t, raw2, node.processed[1].raw)
	require.False(t, node.processed[0].nonSequential)

	require.True(t, book.handles["peer-ahead"].cancelled)
	require.Equal(t, uint32(2), book.handles["peer-ahead"].expecting)
}

// P10: a hash the ledger already knows is dropped from the request plan
// and never reaches ingestion.
func TestRunDropsKnownHashes(t *testing.T) {
	book := newFakePeerBook(peerbook.PeerSnapshot{
		Address: "peer-ahead",
		Quality: peerbook.Quality{BlockHeight: 5},
	})

	l := ledger.NewMapLedger()
	node := &fakeNode{peerBook: book, ledger: l}

	master, sendCh := New(node)

	rawKnown := []byte("already-committed-block")
	rawNew := []byte("brand-new-block")

	hashKnown := chain.ComputeHeaderHash(rawKnown)
	hashNew := chain.ComputeHeaderHash(rawNew)

	require.NoError(t, l.InsertAndCommit(&chain.Block{Header: rawKnown}))

	sendCh <- BlockHashes("peer-ahead", []chain.BlockHeaderHash{hashKnown, hashNew})
	sendCh <- Block("peer-ahead", rawNew)

	err := master.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, node.processed, 1)
	require.Equal(t, rawNew, node.processed[0].raw)
}
