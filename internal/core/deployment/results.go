package deployment

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// =============================================================================
// Result Set
// =============================================================================

var (
	ErrResultSetSealed = errors.New("result set is sealed")
	ErrDuplicateResult = errors.New("unit already has a result")
)

// ResultSet accumulates deployed units in deployment order. Once sealed it
// no longer accepts results.
type ResultSet struct {
	entries []Result
	sealed  bool
}

// Add appends a result.
func (rs *ResultSet) Add(r Result) error {
	if rs.sealed {
		return ErrResultSetSealed
	}
	for _, e := range rs.entries {
		if e.Unit == r.Unit {
			return fmt.Errorf("%w: %s", ErrDuplicateResult, r.Unit)
		}
	}
	rs.entries = append(rs.entries, r)
	return nil
}

// Seal freezes the result set.
func (rs *ResultSet) Seal() {
	rs.sealed = true
}

// Sealed reports whether Seal has been called.
func (rs *ResultSet) Sealed() bool {
	return rs.sealed
}

// Entries returns a copy of the results in deployment order.
func (rs *ResultSet) Entries() []Result {
	out := make([]Result, len(rs.entries))
	copy(out, rs.entries)
	return out
}

// Address returns the address recorded for unit.
func (rs *ResultSet) Address(unit string) (common.Address, bool) {
	for _, e := range rs.entries {
		if e.Unit == unit {
			return e.Address, true
		}
	}
	return common.Address{}, false
}

// Len returns the number of results.
func (rs *ResultSet) Len() int {
	return len(rs.entries)
}
