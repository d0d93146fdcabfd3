package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/compostdash/internal/server"
	"github.com/dukerupert/compostdash/internal/snapshot"
	"github.com/dukerupert/compostdash/internal/store"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write every account to a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		snap, err := snapshot.Export(cmd.Context(), store.NewAccountStore(e.db))
		if err != nil {
			return err
		}
		if err := snapshot.WriteFile(args[0], snap); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d accounts to %s\n", len(snap.Users), args[0])
		return nil
	},
}

var usersImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load accounts from a JSON snapshot, skipping existing ones",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		snap, err := snapshot.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, err := snapshot.Import(cmd.Context(), store.NewAccountStore(e.db), snap)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d accounts, skipped %d\n", res.Created, res.Skipped)
		return nil
	},
}

var usersPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Give an account the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := server.EnsureAdmin(cmd.Context(), e.db, args[0])
		if err != nil {
			return fmt.Errorf("promote %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> is now an admin\n", a.DisplayName(), a.Email)
		return nil
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Remove an account with its sessions and profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		a, err := server.DeleteAccount(cmd.Context(), e.db, args[0])
		if err != nil {
			return fmt.Errorf("delete %s: %w", args[0], err)
		}
		e.logger.Info("account deleted", "account_id", a.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s <%s>\n", a.DisplayName(), a.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersExportCmd, usersImportCmd, usersPromoteCmd, usersDeleteCmd)
}
