// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package mempool

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/ledger"
	"github.com/dusk-network/dusksync/pkg/core/txn"
	"github.com/dusk-network/dusksync/pkg/txfixture"
	"github.com/dusk-network/dusksync/pkg/util/nativeutils/eventbus"
	"github.com/dusk-network/dusksync/pkg/util/nativeutils/rpcbus"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, ledger.Ledger, *rpcbus.RPCBus) {
	t.Helper()

	l := ledger.NewMapLedger()
	mp := New(txfixture.Decode)
	rpcBus := rpcbus.New()
	eventBus := eventbus.New()

	svc, err := NewService(mp, l, rpcBus, eventBus)
	require.NoError(t, err)

	return svc, l, rpcBus
}

func encodeTx(t *testing.T, tx *txfixture.Tx) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, tx.Encode(&buf))

	return buf.Bytes()
}

func TestServiceSubmitTxThenGetByID(t *testing.T) {
	svc, _, rpcBus := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Run(ctx)

	tx := txfixture.New([]byte("svc-a"))
	raw := encodeTx(t, tx)

	resp, err := rpcBus.Call(TopicSendMempoolTx, rpcbus.NewRequest(*bytes.NewBuffer(raw)))
	require.NoError(t, err)
	require.NoError(t, resp.Err)

	id, ok := resp.Resp.(txn.ID)
	require.True(t, ok)

	resp2, err := rpcBus.Call(TopicGetMempoolTxs, rpcbus.NewRequest(*bytes.NewBuffer(id[:])))
	require.NoError(t, err)
	require.NoError(t, resp2.Err)

	txs, ok := resp2.Resp.([]txn.Transaction)
	require.True(t, ok)
	require.Len(t, txs, 1)

	gotID, err := txs[0].TransactionID()
	require.NoError(t, err)
	require.Equal(t, id, gotID)
}

func TestServiceSubmitRejectedDuplicateReturnsError(t *testing.T) {
	svc, _, rpcBus := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Run(ctx)

	tx := txfixture.New([]byte("svc-b"))
	raw := encodeTx(t, tx)

	resp, err := rpcBus.Call(TopicSendMempoolTx, rpcbus.NewRequest(*bytes.NewBuffer(raw)))
	require.NoError(t, err)
	require.NoError(t, resp.Err)

	resp2, err := rpcBus.Call(TopicSendMempoolTx, rpcbus.NewRequest(*bytes.NewBuffer(raw)))
	require.NoError(t, err)
	require.Error(t, resp2.Err)
}

func TestServiceGetMempoolTxsBySize(t *testing.T) {
	svc, _, rpcBus := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.Run(ctx)

	for _, seed := range []string{"svc-c", "svc-d"} {
		tx := txfixture.New([]byte(seed))
		raw := encodeTx(t, tx)

		resp, err := rpcBus.Call(TopicSendMempoolTx, rpcbus.NewRequest(*bytes.NewBuffer(raw)))
		require.NoError(t, err)
		require.NoError(t, resp.Err)
	}

	var sizeParam [4]byte
	binary.LittleEndian.PutUint32(sizeParam[:], 1<<20)

	resp, err := rpcBus.Call(TopicGetMempoolTxsBySize, rpcbus.NewRequest(*bytes.NewBuffer(sizeParam[:])))
	require.NoError(t, err)
	require.NoError(t, resp.Err)

	txs, ok := resp.Resp.([]txn.Transaction)
	require.True(t, ok)
	require.Len(t, txs, 2)
}

// onBlock drives a cleanse synchronously: called directly (rather than
// through NotifyAcceptedBlock's async channel) so the assertion doesn't
// race the loop goroutine.
func TestServiceOnBlockCleansesCommittedTx(t *testing.T) {
	svc, l, _ := newTestService(t)

	tx := txfixture.New([]byte("svc-e"))
	_, ok, err := svc.mp.Insert(l, Entry{Tx: tx, SizeInBytes: 10})
	require.NoError(t, err)
	require.True(t, ok)

	block := &chain.Block{Header: []byte("svc-e-header"), Txs: []txn.Transaction{tx}}
	require.NoError(t, l.InsertAndCommit(block))

	svc.onBlock(nil)

	require.Equal(t, 0, svc.mp.Len())
}
