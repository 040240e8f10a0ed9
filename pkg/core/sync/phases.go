// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package sync

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/dusk-network/dusksync/pkg/config"
	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/peerbook"
	"github.com/dusk-network/dusksync/pkg/core/wire"
)

// peerHashes pairs one peer's address with the ordered hash list it
// reported, preserving the order replies arrived in.
type peerHashes struct {
	Address string
	Hashes  []chain.BlockHeaderHash
}

// syncBlock is one received block awaiting ordering.
type syncBlock struct {
	Address string
	Block   []byte
}

// selectPeers implements SelectPeers: peers more than one block ahead of
// us that aren't judged bad, sorted by descending height. When the tallest
// peer is more than maxPeerLeadBlocks ahead, the list is truncated to the
// peers that far ahead plus the first one within maxPeerLeadBlocks.
func (m *Master) selectPeers() []peerbook.PeerSnapshot {
	ourHeight := m.node.Ledger().CurrentBlockHeight()

	var interesting []peerbook.PeerSnapshot

	for _, p := range m.node.PeerBook().ConnectedPeersSnapshot() {
		if p.Quality.JudgeBad {
			continue
		}

		if p.Quality.BlockHeight > ourHeight+1 {
			interesting = append(interesting, p)
		}
	}

	sort.SliceStable(interesting, func(i, j int) bool {
		return interesting[i].Quality.BlockHeight > interesting[j].Quality.BlockHeight
	})

	maxLead := config.Get().Sync.MaxPeerLeadBlocks

	if len(interesting) > 0 && interesting[0].Quality.BlockHeight > ourHeight+maxLead {
		for i, p := range interesting {
			if p.Quality.BlockHeight <= ourHeight+maxLead {
				interesting = interesting[:i+1]
				break
			}
		}
	}

	log.WithField("count", len(interesting)).Info("found interesting peers for sync")

	return interesting
}

// blockLocatorHashes implements the "Block locator" contract: storage
// errors degrade to an empty locator rather than aborting the phase.
func (m *Master) blockLocatorHashes() []chain.BlockHeaderHash {
	hashes, err := m.node.Ledger().BlockLocatorHashes()
	if err != nil {
		log.WithError(err).Error("unable to get block locator hashes from storage")
		return nil
	}

	return hashes
}

// sendSyncMessages implements SelectPeers' send step, returning the
// number of peers a GetSync request was actually sent to.
func (m *Master) sendSyncMessages(ctx context.Context) int {
	peers := m.selectPeers()
	locator := m.blockLocatorHashes()

	var (
		wg   sync.WaitGroup
		sent int
	)

	for _, p := range peers {
		handle, ok := m.node.PeerBook().GetPeerHandle(p.Address)
		if !ok {
			continue
		}

		sent++

		wg.Add(1)

		go func(address string, handle peerbook.PeerHandle) {
			defer wg.Done()

			if err := handle.SendPayload(ctx, wire.GetSync(locator)); err != nil {
				log.WithError(err).WithField("peer", address).Warn("failed to send GetSync")
			}
		}(p.Address, handle)
	}

	wg.Wait()

	log.WithField("sent", sent).Info("requested block information from peers")

	return sent
}

// receiveMessages drains the inbound channel until handle returns true,
// the channel closes, or either deadline elapses. overall is fixed at
// phase entry; moving resets on every received event, so a steady
// trickle of messages can keep the phase alive up to overall but a
// stalled peer set ends it after moving.
func (m *Master) receiveMessages(overall, moving time.Duration, handle func(Inbound) bool) {
	overallTimer := time.NewTimer(overall)
	defer overallTimer.Stop()

	movingTimer := time.NewTimer(moving)
	defer movingTimer.Stop()

	for {
		select {
		case msg, ok := <-m.incoming:
			if !ok {
				return
			}

			if handle(msg) {
				return
			}

			if !movingTimer.Stop() {
				<-movingTimer.C
			}

			movingTimer.Reset(moving)
		case <-overallTimer.C:
			return
		case <-movingTimer.C:
			return
		}
	}
}

// receiveSyncHashes implements AwaitHashes: collects at most
// maxPeerCount distinct peers' hash lists, in arrival order. A second
// reply from an already-seen peer overwrites its entry in place rather
// than appending a new one.
func (m *Master) receiveSyncHashes(maxPeerCount int) []peerHashes {
	cfg := config.Get().Sync
	overall := time.Duration(cfg.HashesOverallTimeoutSeconds) * time.Second
	moving := time.Duration(cfg.HashesMovingTimeoutSeconds) * time.Second

	var rows []peerHashes

	index := make(map[string]int)

	m.receiveMessages(overall, moving, func(msg Inbound) bool {
		switch msg.Kind {
		case InboundBlockHashes:
			if i, ok := index[msg.PeerAddress]; ok {
				rows[i].Hashes = msg.Hashes
			} else {
				index[msg.PeerAddress] = len(rows)
				rows = append(rows, peerHashes{Address: msg.PeerAddress, Hashes: msg.Hashes})
			}
		case InboundBlock:
			log.Warn("received sync block prematurely")
		}

		return len(rows) >= maxPeerCount
	})

	total := 0
	for _, r := range rows {
		total += len(r.Hashes)
	}

	log.WithField("hashes", total).WithField("peers", len(rows)).Info("received hashes for sync")

	return rows
}

// receiveSyncBlocks implements AwaitBlocks.
func (m *Master) receiveSyncBlocks(blockCount int) []syncBlock {
	cfg := config.Get().Sync
	overall := time.Duration(cfg.BlocksOverallTimeoutSeconds) * time.Second
	moving := time.Duration(cfg.BlocksMovingTimeoutSeconds) * time.Second

	var blocks []syncBlock

	m.receiveMessages(overall, moving, func(msg Inbound) bool {
		switch msg.Kind {
		case InboundBlockHashes:
			// late, ignored
		case InboundBlock:
			blocks = append(blocks, syncBlock{Address: msg.PeerAddress, Block: msg.Block})
		}

		return len(blocks) >= blockCount
	})

	return blocks
}

// orderBlockHashes implements PlanBlocks' column-major flattening: for
// each index i, visit every row in rows' order and take hashes[i] if
// present, skipping hashes already emitted.
func orderBlockHashes(rows []peerHashes) []chain.BlockHeaderHash {
	var order []chain.BlockHeaderHash

	seen := make(map[chain.BlockHeaderHash]struct{})

	for i := 0; ; i++ {
		foundRow := false

		for _, row := range rows {
			if i >= len(row.Hashes) {
				continue
			}

			foundRow = true
			hash := row.Hashes[i]

			if _, ok := seen[hash]; ok {
				continue
			}

			seen[hash] = struct{}{}
			order = append(order, hash)
		}

		if !foundRow {
			break
		}
	}

	return order
}

// blockPeerMap inverts rows into hash -> advertising peers.
func blockPeerMap(rows []peerHashes) map[chain.BlockHeaderHash][]string {
	m := make(map[chain.BlockHeaderHash][]string)

	for _, row := range rows {
		for _, h := range row.Hashes {
			m[h] = append(m[h], row.Address)
		}
	}

	return m
}

// planPeerAssignment implements PlanBlocks' assignment step: for each
// hash in order, pick one advertiser uniformly at random and group the
// resulting requests by peer.
func planPeerAssignment(
	order []chain.BlockHeaderHash,
	peerMap map[chain.BlockHeaderHash][]string,
) (peerList []string, hashToPeer map[chain.BlockHeaderHash]string, peerToHashes map[string][]chain.BlockHeaderHash) {
	hashToPeer = make(map[chain.BlockHeaderHash]string)
	peerToHashes = make(map[string][]chain.BlockHeaderHash)

	for _, h := range order {
		peers := peerMap[h]
		if len(peers) == 0 {
			continue
		}

		chosen := peers[rand.Intn(len(peers))]

		hashToPeer[h] = chosen
		peerToHashes[chosen] = append(peerToHashes[chosen], h)
	}

	for addr := range peerToHashes {
		peerList = append(peerList, addr)
	}

	return peerList, hashToPeer, peerToHashes
}

// requestBlocks implements RequestBlocks: arm each assigned peer's sync
// counter then send its GetBlocks request, concurrently.
func (m *Master) requestBlocks(ctx context.Context, peerToHashes map[string][]chain.BlockHeaderHash) int {
	var (
		wg   sync.WaitGroup
		sent int
	)

	for addr, hashes := range peerToHashes {
		handle, ok := m.node.PeerBook().GetPeerHandle(addr)
		if !ok {
			continue
		}

		sent += len(hashes)

		wg.Add(1)

		go func(address string, handle peerbook.PeerHandle, hashes []chain.BlockHeaderHash) {
			defer wg.Done()

			handle.ExpectingSyncBlocks(uint32(len(hashes)))

			if err := handle.SendPayload(ctx, wire.GetBlocks(hashes)); err != nil {
				log.WithError(err).WithField("peer", address).Warn("failed to send GetBlocks")
			}
		}(addr, handle, hashes)
	}

	wg.Wait()

	return sent
}

// cancelOutstandingSyncs tells every peer in addresses to stop expecting
// further sync blocks, concurrently.
func (m *Master) cancelOutstandingSyncs(addresses []string) {
	var wg sync.WaitGroup

	for _, addr := range addresses {
		handle, ok := m.node.PeerBook().GetPeerHandle(addr)
		if !ok {
			continue
		}

		wg.Add(1)

		go func(handle peerbook.PeerHandle) {
			defer wg.Done()
			handle.CancelSync()
		}(handle)
	}

	wg.Wait()
}

// ingest implements Ingest: cancel outstanding syncs, index received
// blocks by header hash, then hand them to the node in the deterministic
// order PlanBlocks computed, logging (but not aborting on) gaps.
func (m *Master) ingest(
	peerList []string,
	order []chain.BlockHeaderHash,
	hashToPeer map[chain.BlockHeaderHash]string,
	blocks []syncBlock,
) error {
	m.cancelOutstandingSyncs(peerList)

	byHash := make(map[chain.BlockHeaderHash]syncBlock, len(blocks))

	for _, b := range blocks {
		byHash[chain.ComputeHeaderHash(b.Block)] = b
	}

	for i, hash := range order {
		block, ok := byHash[hash]
		if !ok {
			log.WithField("index", i).
				WithField("total", len(order)).
				WithField("hash", hash).
				WithField("expected_from", hashToPeer[hash]).
				Warn("did not receive block by deadline for sync")

			continue
		}

		if err := m.node.ProcessReceivedBlock(block.Address, block.Block, false); err != nil {
			return err
		}
	}

	m.node.FinishedSyncingBlocks()

	return nil
}
