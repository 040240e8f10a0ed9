// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package ledger

import (
	"testing"

	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/txn"
	"github.com/dusk-network/dusksync/pkg/txfixture"
	"github.com/stretchr/testify/require"
)

func TestMapLedgerInsertAndCommitTracksHeightAndConflicts(t *testing.T) {
	l := NewMapLedger()

	require.Equal(t, uint32(0), l.CurrentBlockHeight())

	tx := txfixture.New([]byte("committed"))

	block := &chain.Block{Header: []byte("header-one"), Txs: []txn.Transaction{tx}}
	require.NoError(t, l.InsertAndCommit(block))

	require.Equal(t, uint32(1), l.CurrentBlockHeight())
	require.True(t, l.BlockHashExists(block.Hash()))
	require.True(t, l.TransactionConflicts(tx))

	for _, sn := range tx.OldSerialNumbers() {
		require.True(t, l.ContainsSerialNumber(sn))
	}

	for _, cm := range tx.NewCommitments() {
		require.True(t, l.ContainsCommitment(cm))
	}

	require.True(t, l.ContainsMemorandum(tx.Memorandum()))
}

func TestMapLedgerMemoryPoolRoundTrip(t *testing.T) {
	l := NewMapLedger()

	_, ok, err := l.GetMemoryPool()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.StoreToMemoryPool([]byte("snapshot-blob")))

	blob, ok, err := l.GetMemoryPool()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("snapshot-blob"), blob)
}

func TestMapLedgerBlockLocatorIncludesTipAndGenesis(t *testing.T) {
	l := NewMapLedger()

	for i := 0; i < 3; i++ {
		block := &chain.Block{Header: []byte{byte(i)}}
		require.NoError(t, l.InsertAndCommit(block))
	}

	locator, err := l.BlockLocatorHashes()
	require.NoError(t, err)
	require.NotEmpty(t, locator)

	genesis := (&chain.Block{Header: []byte{0}}).Hash()
	tip := (&chain.Block{Header: []byte{2}}).Hash()

	require.Equal(t, tip, locator[0])
	require.Equal(t, genesis, locator[len(locator)-1])
}
