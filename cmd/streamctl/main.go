// Command streamctl inspects and serves streams routes.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "streamctl",
		Short:         "streamctl - pay-over-time token routing tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(feeCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(totalsCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return LoadConfig(path)
}
