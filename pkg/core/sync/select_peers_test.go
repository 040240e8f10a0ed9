// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package sync

import (
	"testing"

	"github.com/dusk-network/dusksync/pkg/core/ledger"
	"github.com/dusk-network/dusksync/pkg/core/peerbook"
	"github.com/stretchr/testify/require"
)

func TestSelectPeersExcludesJudgeBadAndEqualHeight(t *testing.T) {
	book := newFakePeerBook(
		peerbook.PeerSnapshot{Address: "same-height", Quality: peerbook.Quality{BlockHeight: 0}},
		peerbook.PeerSnapshot{Address: "bad", Quality: peerbook.Quality{BlockHeight: 5, JudgeBad: true}},
		peerbook.PeerSnapshot{Address: "good", Quality: peerbook.Quality{BlockHeight: 5}},
	)

	node := &fakeNode{peerBook: book, ledger: ledger.NewMapLedger()}
	master, _ := New(node)

	peers := master.selectPeers()

	require.Len(t, peers, 1)
	require.Equal(t, "good", peers[0].Address)
}

// Keep peers strictly more than 10 ahead plus the first one within 10.
func TestSelectPeersTruncatesAfterFirstWithinLead(t *testing.T) {
	book := newFakePeerBook(
		peerbook.PeerSnapshot{Address: "very-tall", Quality: peerbook.Quality{BlockHeight: 50}},
		peerbook.PeerSnapshot{Address: "tall", Quality: peerbook.Quality{BlockHeight: 20}},
		peerbook.PeerSnapshot{Address: "within-lead", Quality: peerbook.Quality{BlockHeight: 9}},
		peerbook.PeerSnapshot{Address: "also-within-lead", Quality: peerbook.Quality{BlockHeight: 8}},
	)

	node := &fakeNode{peerBook: book, ledger: ledger.NewMapLedger()}
	master, _ := New(node)

	peers := master.selectPeers()

	got := make([]string, len(peers))
	for i, p := range peers {
		got[i] = p.Address
	}

	require.Equal(t, []string{"very-tall", "tall", "within-lead"}, got)
}
