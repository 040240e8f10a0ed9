// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package inbound

import (
	"bytes"
	"context"
	"testing"

	"github.com/dusk-network/dusksync/pkg/core/wire"
	"github.com/stretchr/testify/require"
)

type mockPeerHandle struct {
	sent           []wire.Payload
	pongExpected   bool
	pongRTT        uint64
	pingHeight     uint32
	violations     int
	expectingCount uint32
	cancelled      bool
}

func (m *mockPeerHandle) SendPayload(_ context.Context, p wire.Payload) error {
	m.sent = append(m.sent, p)
	return nil
}

func (m *mockPeerHandle) ExpectingSyncBlocks(n uint32) { m.expectingCount = n }
func (m *mockPeerHandle) CancelSync()                  { m.cancelled = true }
func (m *mockPeerHandle) RecordPingSent()              {}

func (m *mockPeerHandle) RecordPong() (uint64, bool) {
	return m.pongRTT, m.pongExpected
}

func (m *mockPeerHandle) RecordPing(height uint32) { m.pingHeight = height }
func (m *mockPeerHandle) RecordProtocolViolation() { m.violations++ }

type mockRouter struct {
	addr    string
	payload wire.Payload
	called  bool
}

func (r *mockRouter) Route(peerAddress string, payload wire.Payload) {
	r.addr = peerAddress
	r.payload = payload
	r.called = true
}

func encode(t *testing.T, p wire.Payload) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))

	return buf.Bytes()
}

func TestDispatchPongExpected(t *testing.T) {
	handle := &mockPeerHandle{pongExpected: true, pongRTT: 12}
	router := &mockRouter{}
	h := New("peer-1", handle, router)

	err := h.Dispatch(context.Background(), encode(t, wire.Pong()))
	require.NoError(t, err)
	require.False(t, router.called)
	require.Equal(t, 0, handle.violations)
}

func TestDispatchPongUnexpectedMarksViolation(t *testing.T) {
	handle := &mockPeerHandle{pongExpected: false}
	router := &mockRouter{}
	h := New("peer-2", handle, router)

	err := h.Dispatch(context.Background(), encode(t, wire.Pong()))
	require.NoError(t, err)
	require.Equal(t, 1, handle.violations)
}

func TestDispatchPingRepliesAndRecordsHeight(t *testing.T) {
	handle := &mockPeerHandle{}
	router := &mockRouter{}
	h := New("peer-3", handle, router)

	err := h.Dispatch(context.Background(), encode(t, wire.Ping(99)))
	require.NoError(t, err)

	require.Equal(t, uint32(99), handle.pingHeight)
	require.Len(t, handle.sent, 1)
	require.Equal(t, wire.KindPong, handle.sent[0].Kind)
}

func TestDispatchForwardsOtherPayloads(t *testing.T) {
	handle := &mockPeerHandle{}
	router := &mockRouter{}
	h := New("peer-4", handle, router)

	err := h.Dispatch(context.Background(), encode(t, wire.SyncBlock([]byte("block"))))
	require.NoError(t, err)

	require.True(t, router.called)
	require.Equal(t, "peer-4", router.addr)
	require.Equal(t, wire.KindSyncBlock, router.payload.Kind)
}

func TestDispatchMalformedPayloadIsTrivialError(t *testing.T) {
	handle := &mockPeerHandle{}
	router := &mockRouter{}
	h := New("peer-5", handle, router)

	// truncated payload: a Kind byte with no body, for a kind that expects
	// more bytes — decode fails with io.ErrUnexpectedEOF/io.EOF.
	err := h.Dispatch(context.Background(), []byte{byte(wire.KindPing)})
	require.Error(t, err)
	require.True(t, isTrivial(err))
	require.False(t, router.called)
}
