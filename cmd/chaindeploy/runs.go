package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// runs
// =============================================================================

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run ledger",
	}
	cmd.PersistentFlags().String("ledger-dsn", "", "ledger database path")
	cmd.AddCommand(newRunsListCmd(a), newRunsShowCmd(a))
	return cmd
}

func newRunsListCmd(a *app) *cobra.Command {
	var opts store.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listRuns(cmd.Context(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs")
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "only runs of this plan")
	return cmd
}

func newRunsShowCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one run and the outcome of each unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.showRun(cmd.Context(), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	return cmd
}

func (a *app) listRuns(ctx context.Context, opts store.ListOptions) error {
	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(ctx, opts.Normalize())
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "no runs recorded")
		return nil
	}

	t := newTable("ID", "PLAN", "CHAIN", "STATUS", "STARTED")
	for _, r := range runs {
		t.Row(r.ID, r.Plan, strconv.FormatUint(r.ChainID, 10), string(r.Status), r.StartedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(a.stdout, t.String())
	return nil
}

func (a *app) showRun(ctx context.Context, id string, asJSON bool) error {
	ledger, err := a.openLedger()
	if err != nil {
		return err
	}
	defer ledger.Close()

	run, err := ledger.GetRun(ctx, id)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	printRun(a, run)
	return nil
}

func printRun(a *app, run *domain.Run) {
	fmt.Fprintf(a.stdout, "Run:      %s\n", run.ID)
	fmt.Fprintf(a.stdout, "Plan:     %s\n", run.Plan)
	fmt.Fprintf(a.stdout, "Chain:    %d\n", run.ChainID)
	fmt.Fprintf(a.stdout, "Deployer: %s\n", run.Deployer)
	fmt.Fprintf(a.stdout, "Status:   %s\n", run.Status)
	fmt.Fprintf(a.stdout, "Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	if run.FinishedAt != nil {
		fmt.Fprintf(a.stdout, "Finished: %s\n", run.FinishedAt.Local().Format(time.DateTime))
	}
	if run.Error != "" {
		fmt.Fprintf(a.stdout, "Error:    %s\n", run.Error)
	}
	if len(run.Units) == 0 {
		return
	}

	t := newTable("#", "UNIT", "ARTIFACT", "STATUS", "ADDRESS")
	for _, u := range run.Units {
		t.Row(strconv.Itoa(u.Position+1), u.Unit, u.Artifact, u.Status, u.Address)
	}
	fmt.Fprintln(a.stdout, t.String())
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}
