// Package txn defines the capability set a mempool or sync-master consumer
// needs from a chain transaction, without committing to any one concrete
// transaction representation.
package txn

import "io"

// ID is a transaction's deterministic, fixed-width identity.
type ID [32]byte

// SerialNumber is a nullifier consumed by a transaction.
type SerialNumber [32]byte

// Commitment is a hiding binding to a note a transaction produces.
type Commitment [32]byte

// Memorandum is the application-level uniqueness tag attached to a
// transaction.
type Memorandum [32]byte

// Transaction is the capability set the mempool and sync master require.
// Per spec.md §9 ("Dynamic trait objects"), this is implemented as a single
// monomorphic concrete type per build (pkg/txfixture.Tx in this module),
// not runtime-dispatched across several transaction schemes.
type Transaction interface {
	// TransactionID returns the fixed-width byte string derived
	// deterministically from the transaction's contents.
	TransactionID() (ID, error)

	// SizeInBytes returns the on-wire byte length of the transaction.
	SizeInBytes() int

	// OldSerialNumbers returns the nullifiers this transaction consumes.
	OldSerialNumbers() []SerialNumber

	// NewCommitments returns the commitments this transaction produces.
	NewCommitments() []Commitment

	// Memorandum returns the transaction's single memorandum tag.
	Memorandum() Memorandum

	// Encode writes the transaction's canonical serialization.
	Encode(w io.Writer) error
}
