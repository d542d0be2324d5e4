// Package executor drives a deployment plan against a network deployer,
// one unit at a time, halting the whole run at the first failure.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/artpar/chaindeploy/internal/core/abicodec"
	"github.com/artpar/chaindeploy/internal/core/deployment"
	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/core/plan"
	"github.com/artpar/chaindeploy/internal/core/proxy"
	"github.com/artpar/chaindeploy/internal/shell/report"
)

// =============================================================================
// Collaborators
// =============================================================================

// Deployer submits one contract creation and blocks until it is confirmed
// or rejected.
type Deployer interface {
	Deploy(ctx context.Context, artifact string, args []any) (deployment.Receipt, error)
}

// ABIProvider returns the ABI of an artifact.
type ABIProvider interface {
	ABI(ctx context.Context, artifact string) (*abi.ABI, error)
}

// Recorder persists run progress. store.Store satisfies it.
//
// FinishRun writes the unit that halted the run, if any, together with the
// run's terminal status.
type Recorder interface {
	CreateRun(ctx context.Context, run *domain.Run) error
	RecordUnit(ctx context.Context, rec *domain.UnitRecord) error
	FinishRun(ctx context.Context, run *domain.Run, last *domain.UnitRecord) error
}

// =============================================================================
// Executor
// =============================================================================

// Options configures an Executor. Only the deployer is required.
type Options struct {
	ABIs     ABIProvider // enables bare-name init functions and constructor checks
	Recorder Recorder    // run ledger; nil disables recording
	Logger   *slog.Logger
	ChainID  uint64
	Sender   common.Address // bound to ${deployer}
}

// Executor runs plans. It holds no per-run state and may be reused.
type Executor struct {
	deployer Deployer
	opts     Options
	logger   *slog.Logger
}

// New creates an executor.
func New(d Deployer, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{deployer: d, opts: opts, logger: logger}
}

// Prepared is a plan that passed pre-flight checks.
type Prepared struct {
	Plan  *plan.Plan
	Order []plan.Unit
	Vars  map[string]string
}

// Outcome is the result of a run, successful or not.
type Outcome struct {
	RunID   string
	Plan    string
	ChainID uint64
	Sender  common.Address
	Order   []plan.Unit
	States  *deployment.States
	Results *deployment.ResultSet
	Err     error
}

// Succeeded reports whether every unit was deployed.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil
}

// Summary converts the outcome for reporters.
func (o *Outcome) Summary() report.Summary {
	return report.Summary{
		RunID:      o.RunID,
		Plan:       o.Plan,
		ChainID:    o.ChainID,
		Deployer:   o.Sender.Hex(),
		Results:    o.Results.Entries(),
		Err:        o.Err,
		FinishedAt: time.Now().UTC(),
	}
}

// =============================================================================
// Pre-flight
// =============================================================================

// Prepare validates and orders p, and checks that every argument can be
// resolved and encoded, with zero network side effects. References are
// bound to the zero address for this check.
func (e *Executor) Prepare(ctx context.Context, p *plan.Plan, vars map[string]string) (*Prepared, error) {
	if err := plan.Validate(p); err != nil {
		return nil, err
	}

	ordered, err := deployment.Order(p)
	if err != nil {
		return nil, err
	}

	merged := deployment.MergeVariables(p.Variables, vars, map[string]string{
		"deployer": e.opts.Sender.Hex(),
	})
	if missing := deployment.UndefinedVariables(p, merged); len(missing) > 0 {
		return nil, plan.NewPlanError("variables", "no value for "+strings.Join(missing, ", "), plan.ErrUndefinedVariable)
	}

	for _, u := range ordered {
		args, err := e.unitArgs(ctx, p, u, zeroBook{}, merged)
		if err != nil {
			return nil, plan.NewPlanError("units."+u.Name, err.Error(), err)
		}
		if err := e.checkConstructor(ctx, u, args); err != nil {
			return nil, err
		}
	}

	return &Prepared{Plan: p, Order: ordered, Vars: merged}, nil
}

func (e *Executor) checkConstructor(ctx context.Context, u plan.Unit, args []any) error {
	if e.opts.ABIs == nil {
		return nil
	}
	parsed, err := e.opts.ABIs.ABI(ctx, u.Artifact)
	if err != nil {
		return plan.NewPlanError("units."+u.Name+".artifact", err.Error(), err)
	}
	if _, err := abicodec.CoerceArguments(parsed.Constructor.Inputs, args); err != nil {
		return plan.NewPlanError("units."+u.Name+".args", "constructor: "+err.Error(), plan.ErrInvalidArgument)
	}
	return nil
}

// zeroBook resolves every unit to the zero address.
type zeroBook struct{}

func (zeroBook) Address(string) (common.Address, bool) {
	return common.Address{}, true
}

// =============================================================================
// Run
// =============================================================================

// Run deploys p. The outcome is always returned, carrying the units
// deployed before any failure; the error is the same as Outcome.Err.
//
// A failure in pre-flight deploys nothing. A failure while deploying a unit
// marks that unit failed and stops the run: later units are not attempted,
// whether or not they depend on the failed one.
func (e *Executor) Run(ctx context.Context, p *plan.Plan, vars map[string]string) (*Outcome, error) {
	out := &Outcome{
		ChainID: e.opts.ChainID,
		Sender:  e.opts.Sender,
		Results: &deployment.ResultSet{},
	}
	if p != nil {
		out.Plan = p.Name
	}

	planName := out.Plan
	if planName == "" {
		planName = "unnamed"
	}
	run, err := domain.NewRun(planName, e.opts.ChainID, e.opts.Sender.Hex())
	if err != nil {
		return out, err
	}
	out.RunID = run.ID
	logger := e.logger.With("run_id", run.ID, "plan", planName)

	// The ledger outlives an interrupted run.
	ledgerCtx := context.WithoutCancel(ctx)
	e.record(logger, func(r Recorder) error { return r.CreateRun(ledgerCtx, run) })

	var halted *domain.UnitRecord
	defer func() {
		out.Results.Seal()
		if err := run.Finish(out.Err); err != nil {
			logger.Warn("failed to finish run record", "error", err)
		}
		e.record(logger, func(r Recorder) error { return r.FinishRun(ledgerCtx, run, halted) })
	}()

	prepared, err := e.Prepare(ctx, p, vars)
	if err != nil {
		logger.Error("pre-flight failed", "error", err)
		out.Err = err
		return out, err
	}

	out.Order = prepared.Order
	out.States = deployment.NewStates(prepared.Order)
	logger.Info("starting deployment", "units", len(prepared.Order), "deployer", e.opts.Sender.Hex())

	for i, u := range prepared.Order {
		st, _ := out.States.Get(u.Name)
		if err := e.deployUnit(ctx, logger, p, out.States, st, prepared.Vars, out.Results); err != nil {
			out.Err = err
			halted = unitRecord(run.ID, i, st)
			logger.Error("deployment halted",
				"unit", u.Name,
				"deployed", out.Results.Len(),
				"remaining", len(prepared.Order)-i-1,
				"error", err,
			)
			return out, err
		}
		rec := unitRecord(run.ID, i, st)
		e.record(logger, func(r Recorder) error { return r.RecordUnit(ledgerCtx, rec) })
	}

	logger.Info("deployment complete", "deployed", out.Results.Len())
	return out, nil
}

func (e *Executor) deployUnit(ctx context.Context, logger *slog.Logger, p *plan.Plan, states *deployment.States, st *deployment.UnitState, vars map[string]string, results *deployment.ResultSet) error {
	u := st.Unit
	if err := st.Start(time.Now().UTC()); err != nil {
		return err
	}

	args, err := e.unitArgs(ctx, p, u, states, vars)
	if err != nil {
		failUnit(logger, st, err)
		return fmt.Errorf("unit %s: %w", u.Name, err)
	}

	logger.Info("deploying unit", "unit", u.Name, "artifact", u.Artifact, "proxy", u.IsProxy())
	receipt, err := e.deployer.Deploy(ctx, u.Artifact, args)
	if err != nil {
		depErr := &plan.DeploymentError{Unit: u.Name, Artifact: u.Artifact, Err: err}
		failUnit(logger, st, depErr)
		return depErr
	}

	if err := st.Complete(receipt, time.Now().UTC()); err != nil {
		return err
	}
	if err := results.Add(deployment.Result{
		Unit:     u.Name,
		Artifact: u.Artifact,
		Address:  receipt.Address,
		TxHash:   receipt.TxHash,
	}); err != nil {
		return err
	}

	logger.Info("unit deployed",
		"unit", u.Name,
		"address", receipt.Address.Hex(),
		"tx_hash", receipt.TxHash.Hex(),
		"block", receipt.BlockNumber,
		"gas_used", receipt.GasUsed,
	)
	return nil
}

func failUnit(logger *slog.Logger, st *deployment.UnitState, cause error) {
	if err := st.Fail(cause, time.Now().UTC()); err != nil {
		logger.Warn("failed to mark unit failed", "unit", st.Unit.Name, "status", st.Status, "error", err)
	}
}

// unitArgs returns the constructor arguments of u. A proxy unit gets
// [logicAddress, initCalldata]; any other unit gets its resolved args.
func (e *Executor) unitArgs(ctx context.Context, p *plan.Plan, u plan.Unit, book deployment.AddressBook, vars map[string]string) ([]any, error) {
	if !u.IsProxy() {
		return deployment.ResolveArgs(u.Args, book, vars)
	}

	logic, ok := book.Address(u.Wraps)
	if !ok {
		return nil, fmt.Errorf("%w: logic unit %s is not deployed", plan.ErrUnresolvedReference, u.Wraps)
	}
	if u.Init == nil {
		return proxy.ConstructorArgs(logic, nil), nil
	}

	initArgs, err := deployment.ResolveArgs(u.Init.Args, book, vars)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	logicABI, err := e.logicABI(ctx, p, u)
	if err != nil {
		return nil, err
	}

	payload, err := proxy.EncodeInit(proxy.Call{Function: u.Init.Function, Args: initArgs}, logicABI)
	if err != nil {
		return nil, err
	}
	return proxy.ConstructorArgs(logic, payload), nil
}

// logicABI loads the ABI of the unit u wraps, when a bare function name
// needs it and an ABI provider is configured.
func (e *Executor) logicABI(ctx context.Context, p *plan.Plan, u plan.Unit) (*abi.ABI, error) {
	if e.opts.ABIs == nil || strings.Contains(u.Init.Function, "(") {
		return nil, nil
	}
	logic, ok := p.Unit(u.Wraps)
	if !ok {
		return nil, fmt.Errorf("%w: unknown logic unit %s", plan.ErrUnknownReference, u.Wraps)
	}
	parsed, err := e.opts.ABIs.ABI(ctx, logic.Artifact)
	if err != nil {
		return nil, fmt.Errorf("%w: logic ABI of %s: %v", plan.ErrInvalidInitPayload, logic.Name, err)
	}
	return parsed, nil
}

// =============================================================================
// Recording
// =============================================================================

// record calls fn against the recorder. Ledger failures are logged and never
// change the outcome of the run.
func (e *Executor) record(logger *slog.Logger, fn func(Recorder) error) {
	if e.opts.Recorder == nil {
		return
	}
	if err := fn(e.opts.Recorder); err != nil {
		logger.Warn("failed to write run ledger", "error", err)
	}
}

func unitRecord(runID string, position int, st *deployment.UnitState) *domain.UnitRecord {
	rec := &domain.UnitRecord{
		RunID:    runID,
		Position: position,
		Unit:     st.Unit.Name,
		Artifact: st.Unit.Artifact,
		Status:   string(st.Status),
	}
	if !st.FinishedAt.IsZero() {
		finished := st.FinishedAt
		rec.FinishedAt = &finished
	}
	if st.Status == deployment.StatusDeployed {
		rec.Address = st.Address.Hex()
		rec.TxHash = st.TxHash.Hex()
	}
	if st.Err != nil {
		rec.Error = st.Err.Error()
	}
	return rec
}
