package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "printctl",
		Short:         "Operator tooling for the print hub",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(filesCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(checksumCmd())
	rootCmd.AddCommand(quoteCmd())

	return rootCmd
}
