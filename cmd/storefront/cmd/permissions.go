package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/permissions"
)

var listCatalog bool

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Permission catalog commands",
}

var permissionsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Seed the permission catalog and grant it to the super role",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		res, err := a.rbac.SyncPermissions(ctx)
		if err != nil {
			return fmt.Errorf("sync permissions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d permissions, granted %d to %s\n",
			res.Seeded, res.GrantedToSuperRole, cfg.RBAC.SuperRole)
		return nil
	},
}

var permissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored permissions",
	Long:  `Lists the permissions in the store. With --catalog, lists the built-in catalog without touching the database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "NAME\tMODULE\tDESCRIPTION")

		if listCatalog {
			for _, d := range permissions.Definitions() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Module, d.Description())
			}
			return nil
		}

		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		perms, err := a.rbac.ListPermissions(ctx)
		if err != nil {
			return fmt.Errorf("list permissions: %w", err)
		}
		for _, p := range perms {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Module, p.Description)
		}
		return nil
	},
}

func init() {
	permissionsListCmd.Flags().BoolVar(&listCatalog, "catalog", false, "List the built-in catalog instead of the store")
	permissionsCmd.AddCommand(permissionsSyncCmd, permissionsListCmd)
	rootCmd.AddCommand(permissionsCmd)
}
