// Package chain tracks the invoice counter and previous-invoice hash that
// link every issued document to the one before it.
package chain

import "strings"

// GenesisHash is the previous-invoice hash carried by the first document of
// a chain. It is the base64 form of the hex SHA-256 digest of "0".
const GenesisHash = "NWZlY2ViNjZmZmM4NmYzOGQ5NTI3ODZjNmQ2OTZjNzljMmRiYzIzOWRkNGU5MWI0NjcyOWQ3M2EyN2ZiNTdlOQ=="

// State is the position of a chain after its last issued document.
type State struct {
	Counter int64  `json:"counter"`
	Hash    string `json:"hash"`
}

// Genesis returns the state of a chain with nothing issued yet.
func Genesis() State {
	return State{Counter: 0, Hash: GenesisHash}
}

// Normalize substitutes the genesis hash for an empty hash and clamps a
// negative counter to zero. The counter of a state is kept as given.
func (s State) Normalize() State {
	if strings.TrimSpace(s.Hash) == "" {
		s.Hash = GenesisHash
	}
	if s.Counter < 0 {
		s.Counter = 0
	}
	return s
}

// NextCounter is the counter value the next document must carry.
func (s State) NextCounter() int64 {
	return s.Counter + 1
}

// Advance returns the state after a document carrying hash has been accepted.
func (s State) Advance(hash string) State {
	return State{Counter: s.Counter + 1, Hash: hash}
}

