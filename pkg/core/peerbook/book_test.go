// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package peerbook

import (
	"context"
	"testing"

	"github.com/dusk-network/dusksync/pkg/core/wire"
	"github.com/stretchr/testify/require"
)

type noopSender struct {
	sent []wire.Payload
}

func (s *noopSender) Send(_ context.Context, p wire.Payload) error {
	s.sent = append(s.sent, p)
	return nil
}

func TestRecordPongWithoutPingIsProtocolViolation(t *testing.T) {
	p := NewPeer("peer-a", &noopSender{})

	_, expected := p.RecordPong()
	require.False(t, expected)
}

func TestRecordPingThenPongComputesRTT(t *testing.T) {
	p := NewPeer("peer-b", &noopSender{})

	p.RecordPingSent()
	rtt, expected := p.RecordPong()
	require.True(t, expected)
	require.Less(t, rtt, uint64(1_000))

	// a second, unsolicited pong is now a protocol violation.
	_, expected = p.RecordPong()
	require.False(t, expected)
}

func TestRecordPingStoresAdvertisedHeight(t *testing.T) {
	p := NewPeer("peer-c", &noopSender{})

	p.RecordPing(42)

	snap := p.Snapshot()
	require.Equal(t, uint32(42), snap.Quality.BlockHeight)
	require.False(t, snap.Quality.JudgeBad)
}

func TestRecordProtocolViolationMarksJudgeBad(t *testing.T) {
	p := NewPeer("peer-d", &noopSender{})

	p.RecordProtocolViolation()

	require.True(t, p.Snapshot().Quality.JudgeBad)
}

func TestBookAddRemoveSnapshot(t *testing.T) {
	b := NewBook()

	a := NewPeer("peer-e", &noopSender{})
	a.RecordPing(10)

	c := NewPeer("peer-f", &noopSender{})
	c.RecordPing(20)

	b.Add(a)
	b.Add(c)

	snaps := b.ConnectedPeersSnapshot()
	require.Len(t, snaps, 2)

	handle, ok := b.GetPeerHandle("peer-e")
	require.True(t, ok)
	require.NotNil(t, handle)

	b.Remove("peer-e")

	_, ok = b.GetPeerHandle("peer-e")
	require.False(t, ok)
	require.Len(t, b.ConnectedPeersSnapshot(), 1)
}

func TestExpectingSyncBlocksAndCancelSync(t *testing.T) {
	p := NewPeer("peer-g", &noopSender{})

	p.ExpectingSyncBlocks(5)
	require.Equal(t, uint32(5), p.expectedSyncBlocks)

	// CancelSync clears the counter. Exercise SendPayload too, for
	// completeness.
	p.CancelSync()
	require.Equal(t, uint32(0), p.expectedSyncBlocks)

	sender := &noopSender{}
	p2 := NewPeer("peer-h", sender)

	require.NoError(t, p2.SendPayload(context.Background(), wire.Pong()))
	require.Len(t, sender.sent, 1)
}
