package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Inventory management service",
	Long:  `An inventory service providing user accounts, authentication, and product management via HTTP, with token validation over gRPC.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
