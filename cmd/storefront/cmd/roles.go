package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var roleDescription string

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Role management commands",
}

var rolesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		role, err := a.rbac.CreateRole(ctx, args[0], roleDescription)
		if err != nil {
			return fmt.Errorf("create role: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created role %s (%s)\n", role.Name, role.ID)
		return nil
	},
}

var rolesGrantCmd = &cobra.Command{
	Use:   "grant <role> <permission>...",
	Short: "Grant permissions to a role by name",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		added, err := a.rbac.AssignPermissionsToRole(ctx, args[0], args[1:])
		if err != nil {
			return fmt.Errorf("grant permissions: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Granted %d new permissions to %s\n", added, args[0])
		return nil
	},
}

var rolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List roles and their permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		roles, err := a.rbac.ListRoles(ctx)
		if err != nil {
			return fmt.Errorf("list roles: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "ID\tNAME\tPERMISSIONS")
		for _, r := range roles {
			perms, err := a.rbac.GetRolePermissions(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("role %s permissions: %w", r.Name, err)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.Name, strings.Join(perms, ","))
		}
		return nil
	},
}

func init() {
	rolesCreateCmd.Flags().StringVar(&roleDescription, "description", "", "Role description")
	rolesCmd.AddCommand(rolesCreateCmd, rolesGrantCmd, rolesListCmd)
	rootCmd.AddCommand(rolesCmd)
}
