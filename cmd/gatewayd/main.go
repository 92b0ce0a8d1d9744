package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xbyte-labs/byte-gateway/internal/vault"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gatewayd",
		Short: "byte-gateway - a paywalled byte-range gateway over S3",
		Long: `gatewayd serves byte ranges of objects stored in an S3-compatible
bucket behind an x402 stablecoin payment challenge. Clients pay per
megabyte, per object; payment settles on-chain to a vault address
deterministically derived from the bucket owner's wallet.`,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newComputeVaultCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newComputeVaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compute-vault <wallet>",
		Short: "Derive the vault address for a wallet, offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			fmt.Println(vault.Derive(addr).Hex())
			return nil
		},
	}
}
