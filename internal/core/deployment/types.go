package deployment

import (
	"github.com/ethereum/go-ethereum/common"
)

// =============================================================================
// Deployment Value Types
// =============================================================================

// Receipt is what the network returns for a confirmed deployment.
type Receipt struct {
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// Result pairs a deployed unit with its final address.
type Result struct {
	Unit     string         `json:"unit"`
	Artifact string         `json:"artifact"`
	Address  common.Address `json:"address"`
	TxHash   common.Hash    `json:"tx_hash"`
}

// AddressBook exposes the addresses of units deployed so far.
type AddressBook interface {
	Address(unit string) (common.Address, bool)
}

// StaticBook is an AddressBook backed by a map.
type StaticBook map[string]common.Address

// Address implements AddressBook.
func (b StaticBook) Address(unit string) (common.Address, bool) {
	addr, ok := b[unit]
	return addr, ok
}
