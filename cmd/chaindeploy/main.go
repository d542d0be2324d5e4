package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess = 0
	ExitFailure = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(&app{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitFailure
	}
	return ExitSuccess
}

// =============================================================================
// Root Command
// =============================================================================

// app carries state shared by all subcommands.
type app struct {
	configPath string
	cfg        *Config
	logger     *slog.Logger
	stdout     io.Writer
	stderr     io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chaindeploy",
		Short:         "Deploy dependent smart contracts from a declarative plan",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(a.configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			a.cfg = cfg
			a.logger = SetupLogger(cfg, a.stderr)
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to config file")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json)")

	cmd.AddCommand(
		newDeployCmd(a),
		newPlanCmd(a),
		newRunsCmd(a),
		newServeCmd(a),
		newKeyCmd(a),
	)
	return cmd
}
