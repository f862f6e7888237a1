package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/parley/internal/admin"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin command helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash-passphrase [passphrase]",
		Short: "Print the bcrypt hash to put in admin.passphrase_hash",
		Long:  "Hashes the passphrase argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pass string
			if len(args) == 1 {
				pass = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading passphrase: %w", err)
				}
				pass = strings.TrimRight(line, "\r\n")
			}
			if pass == "" {
				return errors.New("passphrase must not be empty")
			}
			hash, err := admin.HashPassphrase(pass)
			if err != nil {
				return fmt.Errorf("hashing passphrase: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	return cmd
}
