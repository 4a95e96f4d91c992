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
	var addr string

	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Operate the product catalog through the composite API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&addr, "addr", envOr("CATALOG_COMPOSITE_URL", "http://localhost:7000"), "Composite base URL")

	client := func() *compositeClient { return newCompositeClient(addr) }
	rootCmd.AddCommand(getCmd(client))
	rootCmd.AddCommand(createCmd(client))
	rootCmd.AddCommand(deleteCmd(client))
	rootCmd.AddCommand(breakersCmd(client))
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
