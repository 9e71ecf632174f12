package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"drive-go/internal/app"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage roles, permissions and users (requires master:permission)",
}

// runAdmin logs in and runs fn against the admin surface.
func runAdmin(cmd *cobra.Command, operation string, fn func(ctx context.Context, a *app.DriveApp) error) error {
	ctx := cmd.Context()
	a, err := newSession(ctx, operation)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		a.Fail()
		return err
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// permission subcommands
var adminPermCmd = &cobra.Command{
	Use:   "perm",
	Short: "Manage permissions",
}

var adminPermListCmd = &cobra.Command{
	Use:   "list",
	Short: "List permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "ListPermissions", func(ctx context.Context, a *app.DriveApp) error {
			perms, err := a.Admin().ListPermissions(ctx, a.Caller())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION")
			for _, p := range perms {
				fmt.Fprintf(tw, "%s\t%s\n", p.Name, p.Description)
			}
			return tw.Flush()
		})
	},
}

var adminPermCreateCmd = &cobra.Command{
	Use:   "create NAME [DESCRIPTION]",
	Short: "Create a permission",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "CreatePermission", func(ctx context.Context, a *app.DriveApp) error {
			desc := ""
			if len(args) > 1 {
				desc = args[1]
			}
			p, err := a.Admin().CreatePermission(ctx, a.Caller(), args[0], desc)
			if err != nil {
				return err
			}
			fmt.Printf("Created permission %s\n", p.Name)
			return nil
		})
	},
}

var adminPermDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a permission and revoke it from every role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "DeletePermission", func(ctx context.Context, a *app.DriveApp) error {
			if err := a.Admin().DeletePermission(ctx, a.Caller(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted permission %s\n", args[0])
			return nil
		})
	},
}

// role subcommands
var adminRoleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage roles",
}

var adminRoleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List roles and their permissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "ListRoles", func(ctx context.Context, a *app.DriveApp) error {
			roles, err := a.Admin().ListRoles(ctx, a.Caller())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPERMISSIONS")
			for _, r := range roles {
				fmt.Fprintf(tw, "%s\t%s\n", r.Name, strings.Join(r.Permissions, ","))
			}
			return tw.Flush()
		})
	},
}

var adminRoleCreateCmd = &cobra.Command{
	Use:   "create NAME [PERM,PERM...]",
	Short: "Create a role",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "CreateRole", func(ctx context.Context, a *app.DriveApp) error {
			var perms []string
			if len(args) > 1 {
				perms = splitList(args[1])
			}
			r, err := a.Admin().CreateRole(ctx, a.Caller(), args[0], perms)
			if err != nil {
				return err
			}
			fmt.Printf("Created role %s\n", r.Name)
			return nil
		})
	},
}

var adminRoleSetCmd = &cobra.Command{
	Use:   "set NAME PERM,PERM...",
	Short: "Replace a role's permissions",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "SetRolePermissions", func(ctx context.Context, a *app.DriveApp) error {
			r, err := a.Admin().SetRolePermissions(ctx, a.Caller(), args[0], splitList(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("Role %s: %s\n", r.Name, strings.Join(r.Permissions, ","))
			return nil
		})
	},
}

var adminRoleDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a role that no user holds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "DeleteRole", func(ctx context.Context, a *app.DriveApp) error {
			if err := a.Admin().DeleteRole(ctx, a.Caller(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted role %s\n", args[0])
			return nil
		})
	},
}

// user subcommands
var adminUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var adminUserListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "ListUsers", func(ctx context.Context, a *app.DriveApp) error {
			users, err := a.Admin().ListUsers(ctx, a.Caller())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "EMAIL\tID\tROLE\tACTIVE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", u.Email, u.ID, u.RoleID, u.IsActive, u.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		})
	},
}

var adminUserCreateCmd = &cobra.Command{
	Use:   "create EMAIL ROLE",
	Short: "Create a user with the given role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptNewSecret("Password for new user: ")
		if err != nil {
			return err
		}
		return runAdmin(cmd, "CreateUser", func(ctx context.Context, a *app.DriveApp) error {
			u, err := a.Admin().CreateUser(ctx, a.Caller(), args[0], password, args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Created user %s (%s)\n", u.Email, u.ID)
			return nil
		})
	},
}

var adminUserRoleCmd = &cobra.Command{
	Use:   "set-role EMAIL ROLE",
	Short: "Assign a role to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAdmin(cmd, "SetUserRole", func(ctx context.Context, a *app.DriveApp) error {
			u, err := a.Admin().SetUserRole(ctx, a.Caller(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("User %s now has role %s\n", u.Email, args[1])
			return nil
		})
	},
}

func userStatusCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " EMAIL",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, "SetUserActive", func(ctx context.Context, a *app.DriveApp) error {
				u, err := a.Admin().SetUserActive(ctx, a.Caller(), args[0], active)
				if err != nil {
					return err
				}
				fmt.Printf("User %s active: %v\n", u.Email, u.IsActive)
				return nil
			})
		},
	}
}

func init() {
	adminPermCmd.AddCommand(adminPermListCmd)
	adminPermCmd.AddCommand(adminPermCreateCmd)
	adminPermCmd.AddCommand(adminPermDeleteCmd)

	adminRoleCmd.AddCommand(adminRoleListCmd)
	adminRoleCmd.AddCommand(adminRoleCreateCmd)
	adminRoleCmd.AddCommand(adminRoleSetCmd)
	adminRoleCmd.AddCommand(adminRoleDeleteCmd)

	adminUserCmd.AddCommand(adminUserListCmd)
	adminUserCmd.AddCommand(adminUserCreateCmd)
	adminUserCmd.AddCommand(adminUserRoleCmd)
	adminUserCmd.AddCommand(userStatusCmd("enable", "Re-enable a user account", true))
	adminUserCmd.AddCommand(userStatusCmd("disable", "Disable a user account", false))

	adminCmd.AddCommand(adminPermCmd)
	adminCmd.AddCommand(adminRoleCmd)
	adminCmd.AddCommand(adminUserCmd)
}
