package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/chaindeploy/internal/core/deployment"
)

var (
	addrLogic  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	addrProxy  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	addrMarket = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func sampleSummary() Summary {
	return Summary{
		RunID:    "run-1",
		Plan:     "insurance",
		ChainID:  31337,
		Deployer: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Results: []deployment.Result{
			{Unit: "AccountLogic", Artifact: "AccountLogic", Address: addrLogic},
			{Unit: "AccountProxy", Artifact: "AccountProxy", Address: addrProxy},
			{Unit: "InsurancePolicyFactory", Artifact: "InsurancePolicyFactory", Address: addrMarket},
		},
		FinishedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// Console Tests
// =============================================================================

func TestConsole_AlignsAddresses(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Report(context.Background(), sampleSummary()))

	out := buf.String()
	assert.Contains(t, out, "Deployment Summary:")
	assert.Contains(t, out, "AccountLogic:           "+addrLogic.Hex())
	assert.Contains(t, out, "InsurancePolicyFactory: "+addrMarket.Hex())
	assert.NotContains(t, out, "FAILED")

	// Results appear in deployment order.
	assert.Less(t, strings.Index(out, "AccountLogic:"), strings.Index(out, "AccountProxy:"))
	assert.Less(t, strings.Index(out, "AccountProxy:"), strings.Index(out, "InsurancePolicyFactory:"))
}

func TestConsole_Failure(t *testing.T) {
	s := sampleSummary()
	s.Results = s.Results[:1]
	s.Err = errors.New("unit AccountProxy (AccountProxy): deployment failed: reverted")

	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Report(context.Background(), s))

	out := buf.String()
	assert.Contains(t, out, "AccountLogic: "+addrLogic.Hex())
	assert.Contains(t, out, "FAILED: unit AccountProxy")
	assert.Less(t, strings.Index(out, "AccountLogic:"), strings.Index(out, "FAILED"))
}

func TestConsole_NothingDeployed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Report(context.Background(), Summary{Err: errors.New("cycle")}))
	assert.Contains(t, buf.String(), "(no contracts deployed)")
}

// =============================================================================
// File Reporter Tests
// =============================================================================

func TestJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "deployments.json")
	s := sampleSummary()
	s.Err = errors.New("halted")

	require.NoError(t, JSONFile{Path: path}.Report(context.Background(), s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got jsonSummary
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "halted", got.Error)
	require.Len(t, got.Contracts, 3)
	assert.Equal(t, "AccountLogic", got.Contracts[0].Name)
	assert.Equal(t, "InsurancePolicyFactory", got.Contracts[2].Name)
	assert.Equal(t, addrProxy.Hex(), got.Addresses["AccountProxy"])
}

func TestEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, EnvFile{Path: path, Prefix: "VITE_"}.Report(context.Background(), sampleSummary()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"VITE_ACCOUNT_LOGIC_ADDRESS="+addrLogic.Hex()+"\n"+
			"VITE_ACCOUNT_PROXY_ADDRESS="+addrProxy.Hex()+"\n"+
			"VITE_INSURANCE_POLICY_FACTORY_ADDRESS="+addrMarket.Hex()+"\n",
		string(raw))
}

func TestEnvFile_FailureComment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	s := sampleSummary()
	s.Err = errors.New("unit X:\n reverted")

	require.NoError(t, EnvFile{Path: path}.Report(context.Background(), s))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(raw), "\n")
	assert.Equal(t, "# run run-1 failed: unit X: reverted", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "ACCOUNT_LOGIC_ADDRESS="))
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"AccountLogic":           "ACCOUNT_LOGIC",
		"InsurancePolicyFactory": "INSURANCE_POLICY_FACTORY",
		"ERC20Token":             "ERC20_TOKEN",
		"USDCVault":              "USDC_VAULT",
		"profiles":               "PROFILES",
		"market.v2":              "MARKET_V2",
	}
	for in, want := range tests {
		assert.Equal(t, want, EnvName(in), in)
	}
}

// =============================================================================
// Multi Tests
// =============================================================================

type recordingReporter struct {
	calls int
	err   error
}

func (r *recordingReporter) Report(ctx context.Context, s Summary) error {
	r.calls++
	return r.err
}

func TestMulti_RunsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	first := &recordingReporter{err: errA}
	second := &recordingReporter{}
	third := &recordingReporter{err: errB}

	err := Multi{first, second, third}.Report(context.Background(), sampleSummary())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 1, third.calls)

	assert.NoError(t, Multi{second}.Report(context.Background(), sampleSummary()))
}
