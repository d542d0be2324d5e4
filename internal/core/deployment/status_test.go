package deployment

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/chaindeploy/internal/core/plan"
)

var now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// =============================================================================
// Status Transition Tests
// =============================================================================

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to Status
		valid    bool
	}{
		{StatusPending, StatusDeploying, true},
		{StatusPending, StatusDeployed, false},
		{StatusPending, StatusFailed, false},
		{StatusDeploying, StatusDeployed, true},
		{StatusDeploying, StatusFailed, true},
		{StatusDeploying, StatusPending, false},
		{StatusDeployed, StatusDeploying, false},
		{StatusFailed, StatusDeploying, false},
		{StatusFailed, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.from.CanTransitionTo(tt.to))
			err := ValidateTransition(tt.from, tt.to)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusDeploying.IsTerminal())
	assert.True(t, StatusDeployed.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

// =============================================================================
// UnitState Tests
// =============================================================================

func TestUnitState_Lifecycle(t *testing.T) {
	st := &UnitState{Unit: plan.Unit{Name: "A"}, Status: StatusPending}

	require.NoError(t, st.Start(now))
	assert.Equal(t, StatusDeploying, st.Status)
	assert.Equal(t, now, st.StartedAt)

	r := Receipt{Address: common.HexToAddress("0xaa"), TxHash: common.HexToHash("0x01")}
	require.NoError(t, st.Complete(r, now.Add(time.Second)))
	assert.Equal(t, StatusDeployed, st.Status)
	assert.Equal(t, r.Address, st.Address)
	assert.Equal(t, r.TxHash, st.TxHash)

	assert.ErrorIs(t, st.Fail(assert.AnError, now), ErrInvalidTransition)
	assert.ErrorIs(t, st.Start(now), ErrInvalidTransition)
}

func TestUnitState_FailIsFinal(t *testing.T) {
	st := &UnitState{Unit: plan.Unit{Name: "A"}, Status: StatusPending}

	assert.ErrorIs(t, st.Fail(assert.AnError, now), ErrInvalidTransition, "pending cannot fail directly")

	require.NoError(t, st.Start(now))
	require.NoError(t, st.Fail(assert.AnError, now))
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, assert.AnError, st.Err)

	assert.ErrorIs(t, st.Complete(Receipt{}, now), ErrInvalidTransition)
}

// =============================================================================
// States Tests
// =============================================================================

func TestStates(t *testing.T) {
	states := NewStates([]plan.Unit{{Name: "B"}, {Name: "A"}, {Name: "C"}})

	all := states.All()
	require.Len(t, all, 3)
	assert.Equal(t, "B", all[0].Unit.Name)
	assert.Equal(t, "C", all[2].Unit.Name)
	assert.Equal(t, map[Status]int{StatusPending: 3}, states.Count())

	b, ok := states.Get("B")
	require.True(t, ok)
	require.NoError(t, b.Start(now))
	require.NoError(t, b.Complete(Receipt{Address: addrLogic}, now))

	addr, ok := states.Address("B")
	assert.True(t, ok)
	assert.Equal(t, addrLogic, addr)

	_, ok = states.Address("A")
	assert.False(t, ok)
	_, ok = states.Get("Z")
	assert.False(t, ok)

	assert.Equal(t, map[Status]int{StatusPending: 2, StatusDeployed: 1}, states.Count())
}

// =============================================================================
// ResultSet Tests
// =============================================================================

func TestResultSet(t *testing.T) {
	var rs ResultSet

	require.NoError(t, rs.Add(Result{Unit: "Logic", Address: addrLogic}))
	require.NoError(t, rs.Add(Result{Unit: "Owner", Address: addrOwner}))
	assert.ErrorIs(t, rs.Add(Result{Unit: "Logic"}), ErrDuplicateResult)
	assert.Equal(t, 2, rs.Len())

	addr, ok := rs.Address("Owner")
	assert.True(t, ok)
	assert.Equal(t, addrOwner, addr)

	entries := rs.Entries()
	entries[0].Unit = "mutated"
	assert.Equal(t, "Logic", rs.Entries()[0].Unit)

	rs.Seal()
	assert.True(t, rs.Sealed())
	assert.ErrorIs(t, rs.Add(Result{Unit: "Late"}), ErrResultSetSealed)
	assert.Equal(t, 2, rs.Len())
}
