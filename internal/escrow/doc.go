// Package escrow implements the task escrow registry: creating escrow records
// bound to a depositor, recipient and amount, and marking them completed.
//
// Records live in a storage.Store keyed by slot. Every mutating operation is a
// single store transaction; the store's allocation primitive decides which of
// several concurrent creators of the same slot wins. No value moves between
// parties.
package escrow
