package cli

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cantolico/guard/pkg/output"
)

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Obtain an access token",
	Long:  "Authenticate against the guard service and print the access token for use with --token or GUARD_TOKEN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			fmt.Print("Password: ")
			raw, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(raw)
		}

		client := clientFromFlags(cmd)
		resp, err := client.Login(args[0], password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		output.Success("Logged in, token valid for %d seconds", resp.ExpiresIn)
		fmt.Println(resp.AccessToken)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringP("password", "p", "", "Password (prompted when omitted)")
}
