package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/artpar/chaindeploy/internal/core/abicodec"
	"github.com/artpar/chaindeploy/internal/core/deployment"
	"github.com/artpar/chaindeploy/internal/shell/artifacts"
)

// =============================================================================
// Interfaces
// =============================================================================

// Backend is the RPC surface the deployer needs. *ethclient.Client and the
// simulated backend's client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// ArtifactSource resolves artifact references to compiled contracts.
type ArtifactSource interface {
	Load(ctx context.Context, ref string) (*artifacts.Artifact, error)
}

// =============================================================================
// Deployer
// =============================================================================

// Config holds the deployer settings.
type Config struct {
	ChainID        uint64        // expected chain id; 0 accepts whatever the RPC reports
	GasLimit       uint64        // fixed gas limit; 0 estimates per deployment
	ConfirmTimeout time.Duration // 0 waits until ctx is done
}

// Deployer signs and submits contract creations one at a time.
type Deployer struct {
	backend   Backend
	artifacts ArtifactSource
	auth      *bind.TransactOpts
	address   common.Address
	chainID   *big.Int
	cfg       Config
	logger    *slog.Logger

	// waitMined blocks until tx is mined; replaced in tests to commit blocks.
	waitMined func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, NewChainError("Dial", url, err.Error(), ErrConnectionFailed)
	}
	return client, nil
}

// NewDeployer creates a deployer signing with key. It checks the chain id
// reported by backend against cfg.ChainID.
func NewDeployer(ctx context.Context, backend Backend, src ArtifactSource, key *ecdsa.PrivateKey, cfg Config, logger *slog.Logger) (*Deployer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, NewChainError("NewDeployer", "", fmt.Sprintf("query chain id: %v", err), ErrConnectionFailed)
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		return nil, NewChainError("NewDeployer", "",
			fmt.Sprintf("configured %d, rpc reports %s", cfg.ChainID, chainID), ErrChainIDMismatch)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, NewChainError("NewDeployer", "", err.Error(), err)
	}

	d := &Deployer{
		backend:   backend,
		artifacts: src,
		auth:      auth,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		chainID:   chainID,
		cfg:       cfg,
		logger:    logger,
	}
	d.waitMined = func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return bind.WaitMined(ctx, backend, tx)
	}
	return d, nil
}

// Address returns the sender address.
func (d *Deployer) Address() common.Address {
	return d.address
}

// ChainID returns the chain id of the connected network.
func (d *Deployer) ChainID() uint64 {
	return d.chainID.Uint64()
}

// Deploy creates the contract of artifactRef with constructor args and waits
// for the receipt. Args are coerced against the artifact's constructor ABI.
func (d *Deployer) Deploy(ctx context.Context, artifactRef string, args []any) (deployment.Receipt, error) {
	a, err := d.artifacts.Load(ctx, artifactRef)
	if err != nil {
		return deployment.Receipt{}, NewChainError("Deploy", artifactRef, err.Error(), err)
	}
	if len(a.Bytecode) == 0 {
		return deployment.Receipt{}, NewChainError("Deploy", artifactRef, "abstract contract or interface", ErrNoBytecode)
	}

	params, err := abicodec.CoerceArguments(a.ABI.Constructor.Inputs, args)
	if err != nil {
		return deployment.Receipt{}, NewChainError("Deploy", artifactRef, fmt.Sprintf("constructor: %v", err), err)
	}

	opts := *d.auth
	opts.Context = ctx
	opts.GasLimit = d.cfg.GasLimit

	addr, tx, _, err := bind.DeployContract(&opts, a.ABI, a.Bytecode, d.backend, params...)
	if err != nil {
		return deployment.Receipt{}, NewChainError("Deploy", artifactRef, fmt.Sprintf("submit: %v", err), err)
	}
	d.logger.Debug("deployment submitted", "artifact", artifactRef, "tx_hash", tx.Hash().Hex(), "nonce", tx.Nonce())

	waitCtx := ctx
	if d.cfg.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.cfg.ConfirmTimeout)
		defer cancel()
	}

	receipt, err := d.waitMined(waitCtx, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return deployment.Receipt{}, NewChainError("Deploy", tx.Hash().Hex(),
				fmt.Sprintf("no receipt after %s", d.cfg.ConfirmTimeout), ErrTimeout)
		}
		return deployment.Receipt{}, NewChainError("Deploy", tx.Hash().Hex(), fmt.Sprintf("wait: %v", err), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return deployment.Receipt{}, NewChainError("Deploy", tx.Hash().Hex(),
			fmt.Sprintf("%s reverted in block %s", artifactRef, receipt.BlockNumber), ErrReverted)
	}

	if receipt.ContractAddress != (common.Address{}) {
		addr = receipt.ContractAddress
	}
	return deployment.Receipt{
		Address:     addr,
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}
