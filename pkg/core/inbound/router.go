// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package inbound dispatches one peer connection's deserialized payloads:
// Ping/Pong are handled here for RTT bookkeeping, everything else is
// forwarded to the node's routing fabric tagged with the sending peer's
// address.
package inbound

import (
	"context"
	"errors"
	"io"

	"github.com/dusk-network/dusksync/pkg/core/peerbook"
	"github.com/dusk-network/dusksync/pkg/core/wire"
	logger "github.com/sirupsen/logrus"
)

var log = logger.WithFields(logger.Fields{"prefix": "inbound"})

// Router forwards a peer's non-Ping/Pong payloads onward, tagged with the
// address they arrived from.
type Router interface {
	Route(peerAddress string, payload wire.Payload)
}

// Handler dispatches payloads arriving from one connected peer.
type Handler struct {
	peerAddress string
	handle      peerbook.PeerHandle
	router      Router
}

// New returns a Handler for the connection at peerAddress.
func New(peerAddress string, handle peerbook.PeerHandle, router Router) *Handler {
	return &Handler{peerAddress: peerAddress, handle: handle, router: router}
}

// DeserializePayload decodes raw into a Payload, per spec.md §4.3's
// deserialize_payload contract.
func (h *Handler) DeserializePayload(raw []byte) (wire.Payload, error) {
	return wire.Decode(raw)
}

// Dispatch decodes and routes one inbound message. On error, trivial
// errors (clean disconnect, expected framing end) log at trace; anything
// else logs at warn, and the caller should close the connection.
func (h *Handler) Dispatch(ctx context.Context, raw []byte) error {
	payload, decodeErr := h.DeserializePayload(raw)

	if err := h.innerDispatch(ctx, payload, decodeErr); err != nil {
		if isTrivial(err) {
			log.WithError(err).WithField("peer", h.peerAddress).Trace("unable to read message")
		} else {
			log.WithError(err).WithField("peer", h.peerAddress).Warn("unable to read message")
		}

		return err
	}

	return nil
}

// innerDispatch implements the body of spec.md §4.3: Pong RTT handling,
// Ping reply and height recording, and forwarding everything else.
func (h *Handler) innerDispatch(ctx context.Context, payload wire.Payload, decodeErr error) error {
	if decodeErr != nil {
		return decodeErr
	}

	switch payload.Kind {
	case wire.KindPong:
		if rtt, expected := h.handle.RecordPong(); expected {
			log.WithField("peer", h.peerAddress).WithField("rtt_ms", rtt).Trace("received pong")
		} else {
			h.handle.RecordProtocolViolation()
		}
	case wire.KindPing:
		if err := h.handle.SendPayload(ctx, wire.Pong()); err != nil {
			return err
		}

		h.handle.RecordPing(payload.Height)
	default:
		h.router.Route(h.peerAddress, payload)
	}

	return nil
}

// isTrivial reports whether err is an expected end-of-stream or benign
// decode failure rather than a genuine protocol error.
func isTrivial(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
