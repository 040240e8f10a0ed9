// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

package mempool

import "errors"

// Errors returned from the Error path of Mempool's contract (spec.md §7):
// only transaction-id derivation and storage I/O failures reach here.
// Semantic rejections (duplicates, conflicts) are communicated through the
// ok return value instead, never through these.
var (
	// ErrTransactionID means the transaction could not derive its own id.
	ErrTransactionID = errors.New("mempool: could not compute transaction id")
)
