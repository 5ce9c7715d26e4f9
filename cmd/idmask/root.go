package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spoofkit/idmask"
	"github.com/spoofkit/idmask/refstr"
	"github.com/spoofkit/idmask/registry"
)

var rootCmd = &cobra.Command{
	Use:          "idmask",
	Short:        "Read or mask the platform identity of the current process",
	SilenceUsage: true,
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the host platform identifiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printIdentity(cmd)
	},
}

var spoofCmd = &cobra.Command{
	Use:   "spoof",
	Short: "Install the interception, then read the identifiers through it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := idmask.Enable(); err != nil {
			return err
		}
		return printIdentity(cmd)
	},
}

func init() {
	rootCmd.AddCommand(readCmd, spoofCmd)
}

func printIdentity(cmd *cobra.Command) error {
	entry := registry.Platform()
	if entry == registry.NoEntry {
		return errors.New("platform device entry not found")
	}

	keys := []string{
		registry.KeyPlatformUUID,
		registry.KeyPlatformSerial,
		registry.KeyModel,
	}

	for _, name := range keys {
		key := refstr.New(name)
		value := registry.CopyProperty(entry, key, nil, registry.NoOptions)
		key.Release()

		if value == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%-22s (not available)\n", name)
			continue
		}

		text, _ := value.Text()
		value.Release()
		fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", name, text)
	}

	return nil
}
