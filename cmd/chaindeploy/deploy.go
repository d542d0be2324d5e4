package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/artpar/chaindeploy/internal/core/plan"
	"github.com/artpar/chaindeploy/internal/shell/artifacts"
	"github.com/artpar/chaindeploy/internal/shell/chain"
	"github.com/artpar/chaindeploy/internal/shell/executor"
	"github.com/artpar/chaindeploy/internal/shell/keys"
	"github.com/artpar/chaindeploy/internal/shell/report"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// deploy
// =============================================================================

func newDeployCmd(a *app) *cobra.Command {
	var vars []string

	cmd := &cobra.Command{
		Use:   "deploy PLAN",
		Short: "Deploy every unit of a plan, in dependency order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.deploy(cmd.Context(), args[0], vars)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&vars, "var", nil, "plan variable as key=value (repeatable)")
	f.String("rpc-url", "", "JSON-RPC endpoint")
	f.Uint64("chain-id", 0, "expected chain id (0 accepts any)")
	f.Uint64("gas-limit", 0, "fixed gas limit per deployment (0 estimates)")
	f.Duration("confirm-timeout", 0, "how long to wait for each receipt")
	f.String("key-source", "", "deployer key source (hex, keyring)")
	f.String("private-key", "", "deployer private key (hex)")
	f.String("keyring-service", "", "keyring service holding the key")
	f.String("keyring-user", "", "keyring user holding the key")
	f.String("artifacts", "", "compiled artifacts directory")
	f.Bool("ledger", false, "record the run in the ledger database")
	f.String("ledger-dsn", "", "ledger database path")
	f.String("json-out", "", "write the summary as JSON to this file")
	f.String("env-out", "", "write NAME_ADDRESS=0x... lines to this file")
	f.String("env-prefix", "", "prefix for every key in --env-out")
	return cmd
}

func (a *app) deploy(ctx context.Context, planPath string, rawVars []string) error {
	p, err := loadPlan(planPath)
	if err != nil {
		return err
	}
	vars, err := parseVars(rawVars)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := keys.Load(a.keyOptions())
	if err != nil {
		return err
	}

	// Plan errors surface before the RPC endpoint is contacted.
	art := artifacts.NewStore(a.cfg.Artifacts.Dir)
	preflight := executor.New(nil, executor.Options{
		ABIs:   art,
		Logger: a.logger,
		Sender: crypto.PubkeyToAddress(key.PublicKey),
	})
	if _, err := preflight.Prepare(ctx, p, vars); err != nil {
		return err
	}

	client, err := chain.Dial(ctx, a.cfg.Network.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	deployer, err := chain.NewDeployer(ctx, client, art, key, chain.Config{
		ChainID:        a.cfg.Network.ChainID,
		GasLimit:       a.cfg.Network.GasLimit,
		ConfirmTimeout: a.cfg.Network.ConfirmTimeout,
	}, a.logger)
	if err != nil {
		return err
	}

	opts := executor.Options{
		ABIs:    art,
		Logger:  a.logger,
		ChainID: deployer.ChainID(),
		Sender:  deployer.Address(),
	}
	if a.cfg.Ledger.Enabled {
		ledger, err := a.openLedger()
		if err != nil {
			return err
		}
		defer ledger.Close()
		opts.Recorder = ledger
	}

	a.logger.Info("deploying plan",
		"plan", planPath,
		"rpc_url", a.cfg.Network.RPCURL,
		"chain_id", deployer.ChainID(),
		"deployer", deployer.Address().Hex(),
	)

	out, runErr := executor.New(deployer, opts).Run(ctx, p, vars)

	// Reports are written even when ctx was interrupted.
	if err := a.reporters().Report(context.Background(), out.Summary()); err != nil {
		a.logger.Error("failed to write report", "error", err)
	}
	return runErr
}

func (a *app) reporters() report.Multi {
	reporters := report.Multi{report.NewConsole(a.stdout)}
	if a.cfg.Output.JSONPath != "" {
		reporters = append(reporters, report.JSONFile{Path: a.cfg.Output.JSONPath})
	}
	if a.cfg.Output.EnvPath != "" {
		reporters = append(reporters, report.EnvFile{Path: a.cfg.Output.EnvPath, Prefix: a.cfg.Output.EnvPrefix})
	}
	return reporters
}

// =============================================================================
// plan
// =============================================================================

func newPlanCmd(a *app) *cobra.Command {
	var (
		vars          []string
		skipArtifacts bool
	)

	cmd := &cobra.Command{
		Use:   "plan PLAN",
		Short: "Check a plan and print its deployment order without touching the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.plan(cmd.Context(), args[0], vars, skipArtifacts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&vars, "var", nil, "plan variable as key=value (repeatable)")
	f.String("artifacts", "", "compiled artifacts directory")
	f.BoolVar(&skipArtifacts, "skip-artifacts", false, "do not check constructor arguments against artifacts")
	f.String("key-source", "", "deployer key source (hex, keyring)")
	f.String("private-key", "", "deployer private key (hex)")
	return cmd
}

func (a *app) plan(ctx context.Context, planPath string, rawVars []string, skipArtifacts bool) error {
	p, err := loadPlan(planPath)
	if err != nil {
		return err
	}
	vars, err := parseVars(rawVars)
	if err != nil {
		return err
	}

	// ${deployer} binds to the zero address when no key is configured.
	var sender common.Address
	key, err := keys.Load(a.keyOptions())
	switch {
	case err == nil:
		sender = crypto.PubkeyToAddress(key.PublicKey)
	case errors.Is(err, keys.ErrNoKey):
		a.logger.Debug("no deployer key configured, using zero address for ${deployer}")
	default:
		return err
	}

	opts := executor.Options{Logger: a.logger, Sender: sender}
	if !skipArtifacts {
		opts.ABIs = artifacts.NewStore(a.cfg.Artifacts.Dir)
	}

	prepared, err := executor.New(nil, opts).Prepare(ctx, p, vars)
	if err != nil {
		return err
	}

	name := p.Name
	if name == "" {
		name = filepath.Base(planPath)
	}
	fmt.Fprintf(a.stdout, "Plan %s: %d units\n", name, len(prepared.Order))
	width := 0
	for _, u := range prepared.Order {
		width = max(width, len(u.Name))
	}
	for i, u := range prepared.Order {
		fmt.Fprintf(a.stdout, "%3d. %-*s  %s%s\n", i+1, width, u.Name, u.Artifact, describeUnit(u))
	}
	return nil
}

func describeUnit(u plan.Unit) string {
	var parts []string
	if u.IsProxy() {
		parts = append(parts, "wraps "+u.Wraps)
		if u.Init != nil {
			parts = append(parts, "init "+u.Init.Function)
		}
	}
	if refs := u.References(); len(refs) > 0 && !u.IsProxy() {
		parts = append(parts, "after "+strings.Join(refs, ", "))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, "; ") + ")"
}

// =============================================================================
// Helpers
// =============================================================================

func loadPlan(path string) (*plan.Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := plan.Parse(path, content)
	if err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return p, nil
}

// parseVars parses repeated key=value flags. Later flags win.
func parseVars(raw []string) (map[string]string, error) {
	vars := make(map[string]string, len(raw))
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --var %q: want key=value", kv)
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}

func (a *app) keyOptions() keys.Options {
	return keys.Options{
		Source:         a.cfg.Deployer.KeySource,
		PrivateKey:     a.cfg.Deployer.PrivateKey,
		KeyringService: a.cfg.Deployer.KeyringService,
		KeyringUser:    a.cfg.Deployer.KeyringUser,
	}
}

func (a *app) openLedger() (*store.SQLiteStore, error) {
	dsn := a.cfg.Ledger.DSN
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}
	return store.NewSQLiteStore(dsn)
}
