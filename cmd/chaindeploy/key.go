package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/chaindeploy/internal/shell/keys"
)

// =============================================================================
// key
// =============================================================================

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the deployer key",
	}
	cmd.PersistentFlags().String("keyring-service", "", "keyring service holding the key")
	cmd.PersistentFlags().String("keyring-user", "", "keyring user holding the key")
	cmd.AddCommand(newKeyImportCmd(a), newKeyAddressCmd(a))
	return cmd
}

func newKeyImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Read a hex private key from stdin and store it in the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.importKey(cmd.InOrStdin())
		},
	}
}

func newKeyAddressCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address of the configured deployer key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keys.Load(a.keyOptions())
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, keys.Address(key))
			return nil
		},
	}
	cmd.Flags().String("key-source", "", "deployer key source (hex, keyring)")
	cmd.Flags().String("private-key", "", "deployer private key (hex)")
	return cmd
}

func (a *app) importKey(in io.Reader) error {
	if f, ok := in.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(a.stderr, "private key (hex): ")
		}
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read key: %w", err)
	}
	hexKey := strings.TrimSpace(line)
	if hexKey == "" {
		return keys.ErrNoKey
	}

	service, user := a.cfg.Deployer.KeyringService, a.cfg.Deployer.KeyringUser
	key, err := keys.Store(service, user, hexKey)
	if err != nil {
		return err
	}

	a.logger.Info("stored deployer key", "service", service, "user", user)
	fmt.Fprintln(a.stdout, keys.Address(key))
	return nil
}
