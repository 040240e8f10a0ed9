// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package sync

import (
	"context"

	"github.com/dusk-network/dusksync/pkg/core/chain"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithFields(logger.Fields{"prefix": "sync"})

// inboundQueueCapacity bounds the Master's inbound channel (spec.md §5:
// "bounded inbound queue... capacity 256"). Senders block once full,
// which is the backpressure mechanism onto per-peer readers.
const inboundQueueCapacity = 256

// Master is a one-shot sync attempt. It is constructed fresh for every
// run and consumed by that run's single call to Run; nothing about it is
// reused afterward.
type Master struct {
	node     Node
	incoming chan Inbound
}

// New returns a Master and the send side of its inbound queue. The
// sender must be handed to whatever routes inbound peer payloads (the
// inbound router) for the duration of the run, and closed or abandoned
// once Run returns.
func New(node Node) (*Master, chan<- Inbound) {
	ch := make(chan Inbound, inboundQueueCapacity)

	return &Master{node: node, incoming: ch}, ch
}

// Run drives the master through SelectPeers, AwaitHashes, PlanBlocks,
// RequestBlocks, AwaitBlocks and Ingest, terminating early (successfully)
// at any phase whose result is empty. ctx bounds individual peer sends;
// it does not cancel the run itself, which is run-to-completion by
// design (spec.md §5).
func (m *Master) Run(ctx context.Context) error {
	sentHashRequests := m.sendSyncMessages(ctx)
	if sentHashRequests == 0 {
		log.Debug("no sync peers found, nothing to do")
		return nil
	}

	received := m.receiveSyncHashes(sentHashRequests)
	if len(received) == 0 {
		log.Debug("no peers answered with block hashes")
		return nil
	}

	orderedAll := orderBlockHashes(received)

	known := 0
	order := make([]chain.BlockHeaderHash, 0, len(orderedAll))

	for _, h := range orderedAll {
		if m.node.Ledger().BlockHashExists(h) {
			known++
			continue
		}

		order = append(order, h)
	}

	log.WithField("requesting", len(order)).WithField("already_known", known).Info("planned sync block order")

	if len(order) == 0 {
		return nil
	}

	peerMap := blockPeerMap(received)

	peerList, hashToPeer, peerToHashes := planPeerAssignment(order, peerMap)

	sentBlockRequests := m.requestBlocks(ctx, peerToHashes)

	receivedBlocks := m.receiveSyncBlocks(sentBlockRequests)

	log.WithField("received", len(receivedBlocks)).WithField("requested", sentBlockRequests).Info("received blocks for sync")

	return m.ingest(peerList, order, hashToPeer, receivedBlocks)
}
