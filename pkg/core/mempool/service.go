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
	"fmt"
	"time"

	"github.com/dusk-network/dusksync/pkg/config"
	"github.com/dusk-network/dusksync/pkg/core/chain"
	"github.com/dusk-network/dusksync/pkg/core/ledger"
	"github.com/dusk-network/dusksync/pkg/core/txn"
	"github.com/dusk-network/dusksync/pkg/util/nativeutils/eventbus"
	"github.com/dusk-network/dusksync/pkg/util/nativeutils/rpcbus"
	"golang.org/x/time/rate"
)

// Topics this package registers on the shared rpcbus.
const (
	TopicGetMempoolTxs        rpcbus.Topic = "mempool.get_txs"
	TopicGetMempoolTxsBySize  rpcbus.Topic = "mempool.get_txs_by_size"
	TopicSendMempoolTx        rpcbus.Topic = "mempool.send_tx"
	topicAdvertiseTx          eventbus.Topic = "mempool.advertise_tx"
	idleTick                                = 20 * time.Second
	pendingPropagationBacklog               = 1000
)

// Service wraps the synchronous Mempool core with the concurrency shell
// spec.md §5 describes: a request loop goroutine that serves rpcbus
// requests and runs post-commit Cleanse calls one at a time, and a
// rate-limited propagation loop that advertises newly admitted
// transactions. Mempool's own methods stay synchronous. SubmitTx runs
// Insert on its caller's goroutine, so a direct SubmitTx call is not
// serialized with the loop.
type Service struct {
	mp     *Mempool
	ledger ledger.Ledger

	rpcBus   *rpcbus.RPCBus
	eventBus *eventbus.EventBus

	getMempoolTxsChan       chan rpcbus.Request
	getMempoolTxsBySizeChan chan rpcbus.Request
	sendTxChan              chan rpcbus.Request
	acceptedBlockChan       chan *chain.Block
	pendingPropagation      chan txn.ID

	limiter *rate.Limiter
}

// NewService registers this mempool's rpcbus topics and returns a
// Service ready for Run.
func NewService(mp *Mempool, l ledger.Ledger, rpcBus *rpcbus.RPCBus, eventBus *eventbus.EventBus) (*Service, error) {
	s := &Service{
		mp:                      mp,
		ledger:                  l,
		rpcBus:                  rpcBus,
		eventBus:                eventBus,
		getMempoolTxsChan:       make(chan rpcbus.Request, 1),
		getMempoolTxsBySizeChan: make(chan rpcbus.Request, 1),
		sendTxChan:              make(chan rpcbus.Request, 1),
		acceptedBlockChan:       make(chan *chain.Block, 1),
		pendingPropagation:      make(chan txn.ID, pendingPropagationBacklog),
	}

	if err := rpcBus.Register(TopicGetMempoolTxs, s.getMempoolTxsChan); err != nil {
		return nil, err
	}

	if err := rpcBus.Register(TopicGetMempoolTxsBySize, s.getMempoolTxsBySizeChan); err != nil {
		return nil, err
	}

	if err := rpcBus.Register(TopicSendMempoolTx, s.sendTxChan); err != nil {
		return nil, err
	}

	cfg := config.Get().Mempool
	if cfg.PropagateTimeout != "" {
		d, err := time.ParseDuration(cfg.PropagateTimeout)
		if err != nil {
			log.WithError(err).Error("could not parse mempool propagation timeout, propagation unthrottled")
		} else {
			burst := cfg.PropagateBurst
			if burst < 1 {
				burst = 1
			}

			s.limiter = rate.NewLimiter(rate.Every(d), burst)
		}
	}

	return s, nil
}

// Run spawns the request loop and the propagation loop. Both exit when
// ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	go s.loop(ctx)
	go s.propagateLoop(ctx)
}

// loop serves rpcbus requests, drains accepted-block notifications into
// a post-commit cleanse, and logs an idle-tick summary.
func (s *Service) loop(ctx context.Context) {
	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()

	for {
		select {
		case r := <-s.sendTxChan:
			handleRequest(r, s.processSendMempoolTx, "SendMempoolTx")
		case r := <-s.getMempoolTxsChan:
			handleRequest(r, s.processGetMempoolTxs, "GetMempoolTxs")
		case r := <-s.getMempoolTxsBySizeChan:
			handleRequest(r, s.processGetMempoolTxsBySize, "GetMempoolTxsBySize")
		case b := <-s.acceptedBlockChan:
			s.onBlock(b)
		case <-ticker.C:
			s.onIdle()
		case <-ctx.Done():
			log.Info("mempool loop terminated")
			return
		}
	}
}

// propagateLoop advertises admitted transactions at the configured rate,
// one hash at a time.
func (s *Service) propagateLoop(ctx context.Context) {
	for {
		select {
		case id := <-s.pendingPropagation:
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					log.WithError(err).Error("failed to rate-limit propagation")
				}
			}

			if err := s.advertiseTx(id); err != nil {
				log.WithField("tx", id).WithError(err).Error("failed to propagate")
			}
		case <-ctx.Done():
			log.Info("mempool propagate loop terminated")
			return
		}
	}
}

// SubmitTx admits entry and, if accepted, queues it for propagation.
// The propagation queue is best-effort: a full queue drops the
// advertisement rather than blocking the caller.
func (s *Service) SubmitTx(entry Entry) (txn.ID, bool, error) {
	id, ok, err := s.mp.Insert(s.ledger, entry)
	if err != nil || !ok {
		return id, ok, err
	}

	select {
	case s.pendingPropagation <- id:
	default:
		log.WithField("tx", id).Warn("propagation queue full, dropping advertisement")
	}

	return id, ok, nil
}

// NotifyAcceptedBlock queues block for the post-commit cleanse the loop
// performs. It does not block; a full queue means a cleanse is already
// pending and this notification is redundant.
func (s *Service) NotifyAcceptedBlock(block *chain.Block) {
	select {
	case s.acceptedBlockChan <- block:
	default:
		log.Debug("accepted block queue full, cleanse already pending")
	}
}

func (s *Service) onBlock(_ *chain.Block) {
	if err := s.mp.Cleanse(s.ledger); err != nil {
		log.WithError(err).Error("failed to cleanse mempool after block commit")
	}
}

func (s *Service) onIdle() {
	l := log.WithField("len", s.mp.Len()).WithField("size_bytes", s.mp.TotalSizeInBytes())
	l.Info("mempool idle")

	maxBytes := config.Get().Mempool.MaxSizeMB * 1_000_000
	if maxBytes > 0 && s.mp.TotalSizeInBytes() > maxBytes {
		l.Warn("mempool is full")
	}
}

// advertiseTx publishes id's raw 32 bytes on the advertise-tx event bus
// topic.
func (s *Service) advertiseTx(id txn.ID) error {
	buf := bytes.NewBuffer(id[:])

	errs := s.eventBus.Publish(topicAdvertiseTx, *buf)
	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}

func (s *Service) processSendMempoolTx(r rpcbus.Request) (interface{}, error) {
	entry, err := s.mp.DecodeEntry(r.Params.Bytes())
	if err != nil {
		return nil, err
	}

	id, ok, err := s.SubmitTx(entry)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("mempool: transaction rejected")
	}

	return id, nil
}

func (s *Service) processGetMempoolTxs(r rpcbus.Request) (interface{}, error) {
	filter := r.Params.Bytes()

	if len(filter) == len(txn.ID{}) {
		var id txn.ID
		copy(id[:], filter)

		e, ok := s.mp.Get(id)
		if !ok {
			return []txn.Transaction{}, nil
		}

		return []txn.Transaction{e.Tx}, nil
	}

	var out []txn.Transaction

	if err := s.mp.Range(func(_ txn.ID, e Entry) error {
		out = append(out, e.Tx)
		return nil
	}); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Service) processGetMempoolTxsBySize(r rpcbus.Request) (interface{}, error) {
	if r.Params.Len() < 4 {
		return nil, fmt.Errorf("mempool: GetMempoolTxsBySize: missing size parameter")
	}

	maxSize := int(binary.LittleEndian.Uint32(r.Params.Bytes()))

	return s.mp.GetCandidatesBySize(nil, maxSize)
}

func handleRequest(r rpcbus.Request, handler func(rpcbus.Request) (interface{}, error), name string) {
	result, err := handler(r)
	if err != nil {
		log.WithError(err).WithField("request", name).Error("mempool failed to process request")
		r.RespChan <- rpcbus.Response{Err: err}

		return
	}

	r.RespChan <- rpcbus.Response{Resp: result}
}
