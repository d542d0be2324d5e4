package executor_test

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/core/plan"
	"github.com/artpar/chaindeploy/internal/shell/artifacts"
	"github.com/artpar/chaindeploy/internal/shell/chain"
	"github.com/artpar/chaindeploy/internal/shell/executor"
	"github.com/artpar/chaindeploy/internal/shell/report"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

const (
	// PUSH1 0 PUSH1 0 RETURN
	okCode = "0x60006000f3"
	// PUSH1 0 PUSH1 0 REVERT
	revertCode = "0x60006000fd"
)

const (
	logicABI   = `[{"type":"function","name":"initialize","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"label","type":"string"}],"outputs":[]}]`
	proxyABI   = `[{"type":"constructor","stateMutability":"payable","inputs":[{"name":"logic","type":"address"},{"name":"data","type":"bytes"}]}]`
	profileABI = `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"accounts","type":"address"}]}]`
)

// autoMine commits a block after every transaction.
type autoMine struct {
	simulated.Client
	sim *simulated.Backend
}

func (a autoMine) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := a.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	a.sim.Commit()
	return nil
}

// writeArtifact writes a Hardhat-layout artifact under dir.
func writeArtifact(t *testing.T, dir, name, abiJSON, code string) {
	t.Helper()
	path := filepath.Join(dir, "contracts", name+".sol", name+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	raw, err := json.Marshal(map[string]any{
		"contractName": name,
		"abi":          json.RawMessage(abiJSON),
		"bytecode":     code,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
}

type env struct {
	key      *ecdsa.PrivateKey
	ledger   *store.SQLiteStore
	artifact *artifacts.Store
	deployer *chain.Deployer
	exec     *executor.Executor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sim := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))},
	})
	t.Cleanup(func() { sim.Close() })

	dir := t.TempDir()
	writeArtifact(t, dir, "AccountLogic", logicABI, okCode)
	writeArtifact(t, dir, "AccountProxy", proxyABI, okCode)
	writeArtifact(t, dir, "MarketPlace", `[]`, okCode)
	writeArtifact(t, dir, "Profile", profileABI, okCode)
	writeArtifact(t, dir, "Broken", `[]`, revertCode)
	art := artifacts.NewStore(dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := chain.NewDeployer(ctx, autoMine{Client: sim.Client(), sim: sim}, art, key, chain.Config{GasLimit: 200000}, logger)
	require.NoError(t, err)

	ledger, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	return &env{
		key:      key,
		ledger:   ledger,
		artifact: art,
		deployer: d,
		exec: executor.New(d, executor.Options{
			ABIs:     art,
			Recorder: ledger,
			Logger:   logger,
			ChainID:  d.ChainID(),
			Sender:   d.Address(),
		}),
	}
}

func accountsPlan(extra ...plan.Unit) *plan.Plan {
	p := &plan.Plan{
		Name:      "accounts",
		Variables: map[string]string{"label": "Initial Setup"},
		Units: []plan.Unit{
			{Name: "Profiles", Artifact: "Profile", Args: []plan.Arg{plan.Ref("AccountProxy")}},
			{Name: "AccountLogic", Artifact: "AccountLogic"},
			{
				Name: "AccountProxy", Artifact: "AccountProxy", Wraps: "AccountLogic",
				Init: &plan.InitPayload{
					Function: "initialize",
					Args:     []plan.Arg{plan.Literal("${deployer}"), plan.Literal("${label}")},
				},
			},
			{Name: "MarketPlace", Artifact: "MarketPlace"},
		},
	}
	p.Units = append(p.Units, extra...)
	return p
}

// =============================================================================
// End-to-end Tests
// =============================================================================

func TestExecutor_EndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	out, err := e.exec.Run(ctx, accountsPlan(), nil)
	require.NoError(t, err)

	// Addresses follow the sender's nonce in deployment order.
	entries := out.Results.Entries()
	require.Len(t, entries, 4)
	wantOrder := []string{"AccountLogic", "AccountProxy", "Profiles", "MarketPlace"}
	for i, r := range entries {
		assert.Equal(t, wantOrder[i], r.Unit)
		assert.Equal(t, crypto.CreateAddress(e.deployer.Address(), uint64(i)), r.Address, r.Unit)
	}

	run, err := e.ledger.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, run.Status)
	require.Len(t, run.Units, 4)
	assert.Equal(t, entries[1].Address.Hex(), run.Units[1].Address)

	jsonPath := filepath.Join(t.TempDir(), "deployments.json")
	envPath := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, report.Multi{
		report.JSONFile{Path: jsonPath},
		report.EnvFile{Path: envPath, Prefix: "VITE_"},
	}.Report(ctx, out.Summary()))

	raw, err := os.ReadFile(envPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), fmt.Sprintf("VITE_ACCOUNT_PROXY_ADDRESS=%s\n", entries[1].Address.Hex()))
}

func TestExecutor_EndToEnd_HaltsAndRecords(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p := accountsPlan(plan.Unit{Name: "Broken", Artifact: "Broken"}, plan.Unit{Name: "Late", Artifact: "MarketPlace"})
	out, err := e.exec.Run(ctx, p, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, plan.ErrDeploymentFailed)
	assert.ErrorIs(t, err, chain.ErrReverted)

	assert.Equal(t, 4, out.Results.Len())
	_, ok := out.Results.Address("Late")
	assert.False(t, ok)

	run, err := e.ledger.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	require.Len(t, run.Units, 5)
	assert.Equal(t, "failed", run.Units[4].Status)
	assert.Len(t, run.Deployed(), 4)
}

func TestExecutor_EndToEnd_RerunDeploysFreshContracts(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.exec.Run(ctx, accountsPlan(), nil)
	require.NoError(t, err)
	second, err := e.exec.Run(ctx, accountsPlan(), nil)
	require.NoError(t, err)

	for i, r := range second.Results.Entries() {
		assert.NotEqual(t, first.Results.Entries()[i].Address, r.Address)
	}

	runs, err := e.ledger.ListRuns(ctx, store.DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
