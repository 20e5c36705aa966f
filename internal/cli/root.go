// Package cli implements the guardctl commands.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cantolico/guard/pkg/output"
)

var rootCmd = &cobra.Command{
	Use:   "guardctl",
	Short: "Cantólico security guard CLI",
	Long:  "Inspect security events, manage alerts, and seed test data against a running guard service",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8090", "guard service base URL")
	rootCmd.PersistentFlags().String("token", "", "access token (or set GUARD_TOKEN)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table, json)")
}

func clientFromFlags(cmd *cobra.Command) *Client {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("GUARD_TOKEN")
	}
	return NewClient(server, token)
}
