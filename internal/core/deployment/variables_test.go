package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// SubstituteVariables Tests
// =============================================================================

func TestSubstituteVariables_TableDriven(t *testing.T) {
	deployer := "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	tests := []struct {
		name      string
		value     string
		variables map[string]string
		want      string
	}{
		{
			name:      "deployer",
			value:     "${deployer}",
			variables: map[string]string{"deployer": deployer},
			want:      deployer,
		},
		{
			name:      "default used when missing",
			value:     "${setup_label:-Initial Setup}",
			variables: map[string]string{},
			want:      "Initial Setup",
		},
		{
			name:      "variable beats default",
			value:     "${setup_label:-Initial Setup}",
			variables: map[string]string{"setup_label": "Second Setup"},
			want:      "Second Setup",
		},
		{
			name:      "empty default",
			value:     "[${memo:-}]",
			variables: nil,
			want:      "[]",
		},
		{
			name:      "empty value",
			value:     "[${memo}]",
			variables: map[string]string{"memo": ""},
			want:      "[]",
		},
		{
			name:      "missing kept as-is",
			value:     "${treasury}",
			variables: map[string]string{},
			want:      "${treasury}",
		},
		{
			name:      "mixed content",
			value:     "${symbol}-${version:-v1}",
			variables: map[string]string{"symbol": "INS"},
			want:      "INS-v1",
		},
		{
			name:      "value containing dollar",
			value:     "${price}",
			variables: map[string]string{"price": "$100"},
			want:      "$100",
		},
		{
			name:      "plain text",
			value:     "Initial Setup",
			variables: map[string]string{"deployer": deployer},
			want:      "Initial Setup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubstituteVariables(tt.value, tt.variables))
		})
	}
}

// =============================================================================
// MissingVariables Tests
// =============================================================================

func TestMissingVariables(t *testing.T) {
	vars := map[string]string{"deployer": "0x01"}

	assert.Empty(t, MissingVariables("${deployer}", vars))
	assert.Empty(t, MissingVariables("${label:-x}", vars))
	assert.Equal(t, []string{"treasury", "fee"}, MissingVariables("${treasury}/${fee}/${treasury}", vars))
	assert.Empty(t, MissingVariables("no placeholders", nil))
}

// =============================================================================
// MergeVariables Tests
// =============================================================================

func TestMergeVariables_LaterLayersWin(t *testing.T) {
	planVars := map[string]string{"label": "Initial Setup", "fee": "10"}
	flagVars := map[string]string{"fee": "25"}
	builtins := map[string]string{"deployer": "0x01"}

	merged := MergeVariables(planVars, nil, flagVars, builtins)

	assert.Equal(t, map[string]string{
		"label":    "Initial Setup",
		"fee":      "25",
		"deployer": "0x01",
	}, merged)
	assert.Equal(t, "10", planVars["fee"], "inputs are not modified")
}
