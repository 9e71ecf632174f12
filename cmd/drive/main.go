package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"drive-go/internal/app"
	"drive-go/internal/config"
	"drive-go/internal/drive"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps error kinds to distinct process exit statuses.
func exitCode(err error) int {
	switch drive.KindOf(err) {
	case drive.KindValidation:
		return 2
	case drive.KindConflict:
		return 3
	case drive.KindNotFound:
		return 4
	case drive.KindAuthorization:
		return 5
	case drive.KindStorageIO:
		return 6
	default:
		return 1
	}
}

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a DriveApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Upload", "Move").
func newApp(ctx context.Context, operation string) (*app.DriveApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewDriveApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// newSession is newApp followed by a login from DRIVE_EMAIL/DRIVE_PASSWORD
// or a prompt.
func newSession(ctx context.Context, operation string) (*app.DriveApp, error) {
	a, err := newApp(ctx, operation)
	if err != nil {
		return nil, err
	}
	creds, err := credentials(app.CredentialsFromEnv())
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.Login(ctx, creds); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "drive",
	Short:        "Multi-user hierarchical file storage",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if dbType, _ := cmd.Flags().GetString("database"); dbType != "" {
			cfg.Database.Type = dbType
		}
		if bucket, _ := cmd.Flags().GetString("s3-bucket"); bucket != "" {
			cfg.ByteStore = config.ByteStoreConfig{Type: "s3", S3Bucket: bucket}
		}
		if enc, _ := cmd.Flags().GetString("encryption"); enc != "" {
			cfg.Encryption.Type = enc
		}

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		fmt.Printf("Byte store: %s\n", cfg.ByteStore.Type)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Storage Root: %s\n", cfg.StorageRoot)
		fmt.Printf("Database:     %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		switch cfg.ByteStore.Type {
		case "s3":
			fmt.Printf("Byte store:   s3://%s/%s\n", cfg.ByteStore.S3Bucket, cfg.ByteStore.S3Prefix)
		default:
			fmt.Printf("Byte store:   %s %s\n", cfg.ByteStore.Type, cfg.ByteStore.FSRoot)
		}
		fmt.Printf("Encryption:   %s\n", cfg.Encryption.Type)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the metadata database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		applied, err := app.MigrateDatabase(cfg)
		if err != nil {
			return err
		}
		if !applied {
			fmt.Printf("Database type %s has no schema to migrate.\n", cfg.Database.Type)
			return nil
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		st, ok, err := app.DatabaseStatus(cfg)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("Database type %s has no schema version.\n", cfg.Database.Type)
			return nil
		}
		state := "current"
		switch {
		case st.Dirty:
			state = "dirty"
		case !st.Current():
			state = "pending migrations"
		}
		fmt.Printf("Version %d of %d (%s)\n", st.Version, st.Latest, state)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup DEST",
	Short: "Write a snapshot of the metadata database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		dest, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}
		if err := app.BackupDatabase(cfg, dest); err != nil {
			return err
		}
		fmt.Printf("Backup written to %s\n", dest)
		return nil
	},
}

// bootstrap command
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Provision permissions, roles and the first admin",
	Long: "Provision permissions, roles and the first admin. Safe to run repeatedly.\n" +
		"Admin credentials come from DRIVE_ADMIN_EMAIL and DRIVE_ADMIN_PASSWORD.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Bootstrap")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Bootstrap(ctx, app.AdminCredentialsFromEnv())
		if err != nil {
			return err
		}
		fmt.Printf("Permissions created: %d\n", res.PermissionsCreated)
		fmt.Printf("Roles created:       %d\n", res.RolesCreated)
		if res.AdminCreated {
			fmt.Println("Admin account created.")
		}
		return nil
	},
}

// register command
var registerCmd = &cobra.Command{
	Use:   "register [EMAIL]",
	Short: "Create an account with the default role",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, "Register")
		if err != nil {
			return err
		}
		defer a.Close()

		creds := app.CredentialsFromEnv()
		if len(args) > 0 {
			creds.Email = args[0]
		}
		if creds.Password == "" {
			if creds.Password, err = promptNewSecret("Password: "); err != nil {
				return err
			}
		}
		if creds, err = credentials(creds); err != nil {
			return err
		}

		user, err := a.Register(ctx, creds)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "List a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newSession(ctx, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		target := "/"
		if len(args) > 0 {
			target = args[0]
		}
		listing, err := a.List(ctx, target)
		if err != nil {
			return err
		}

		crumbs := []string{""}
		for _, b := range listing.Breadcrumbs {
			crumbs = append(crumbs, b.Name)
		}
		fmt.Printf("%s/\n", strings.Join(crumbs, "/"))
		if len(listing.Children) == 0 {
			fmt.Println("(empty)")
			return nil
		}
		for _, n := range listing.Children {
			kind := "-"
			name := n.Name
			if n.IsFolder {
				kind = "d"
				name += "/"
			}
			fmt.Printf("%s %10d  %s  %-24s  %s\n", kind, n.Size, n.UpdatedAt.Format("2006-01-02 15:04"), n.MimeType, name)
		}
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir PATH",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parents, _ := cmd.Flags().GetBool("parents")

		ctx := cmd.Context()
		a, err := newSession(ctx, "CreateFolder")
		if err != nil {
			return err
		}
		defer a.Close()

		node, err := a.Mkdir(ctx, args[0], parents)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s\n", node.StoragePath)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload LOCAL [REMOTE_DIR]",
	Short: "Upload a file or directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")

		ctx := cmd.Context()
		a, err := newSession(ctx, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		dest := "/"
		if len(args) > 1 {
			dest = args[1]
		}
		nodes, err := a.Upload(ctx, args[0], dest, recursive)
		if err != nil {
			return err
		}
		var total int64
		for _, n := range nodes {
			total += n.Size
		}
		fmt.Printf("Uploaded %d file(s), %d bytes\n", len(nodes), total)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename PATH NEW_NAME",
	Short: "Rename a file or folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newSession(ctx, "Rename")
		if err != nil {
			return err
		}
		defer a.Close()

		node, err := a.Rename(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Renamed to %s\n", node.StoragePath)
		return nil
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv PATH DEST_DIR",
	Short: "Move a file or folder into another folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newSession(ctx, "Move")
		if err != nil {
			return err
		}
		defer a.Close()

		node, err := a.Move(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Moved to %s\n", node.StoragePath)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Delete a file, or a folder and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newSession(ctx, "Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Remove(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d node(s)\n", n)
		return nil
	},
}

var statCmd = &cobra.Command{
	Use:   "stat PATH",
	Short: "Show a node's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newSession(ctx, "Stat")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Stat(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("ID:       %s\n", n.ID)
		fmt.Printf("Name:     %s\n", n.Name)
		fmt.Printf("Folder:   %v\n", n.IsFolder)
		fmt.Printf("Size:     %d\n", n.Size)
		fmt.Printf("Type:     %s\n", n.MimeType)
		fmt.Printf("Storage:  %s\n", n.StoragePath)
		fmt.Printf("Version:  %d\n", n.Version)
		fmt.Printf("Created:  %s\n", n.CreatedAt.Format(time.RFC3339))
		fmt.Printf("Updated:  %s\n", n.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get PATH [LOCAL]",
	Short: "Download a file (to stdout when LOCAL is omitted or -)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newSession(ctx, "Download")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.EncryptionEnabled() {
			p, err := passphrase()
			if err != nil {
				return err
			}
			if err := a.Unlock(p); err != nil {
				return err
			}
		}

		if len(args) < 2 || args[1] == "-" {
			_, err := a.Download(ctx, args[0], os.Stdout)
			return err
		}
		return downloadToFile(ctx, a, args[0], args[1])
	},
}

// downloadToFile writes to a temp file next to dest and renames it into
// place, so a failed download never leaves a truncated file.
func downloadToFile(ctx context.Context, a *app.DriveApp, remote, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".drive-get-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	node, err := a.Download(ctx, remote, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("moving download into place: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Downloaded %s (%d bytes)\n", node.Name, node.Size)
	return nil
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		a, err := newSession(ctx, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(ctx, limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %-8s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		p := os.Getenv(app.EnvPassphrase)
		if p == "" {
			if p, err = promptNewSecret("Passphrase: "); err != nil {
				return err
			}
		}
		if err := a.SetupKeys(p); err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

var keysPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the passphrase protecting the private key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ChangePassphrase")
		if err != nil {
			return err
		}
		defer a.Close()

		oldP, err := promptSecret("Current passphrase: ")
		if err != nil {
			return err
		}
		newP, err := promptNewSecret("New passphrase: ")
		if err != nil {
			return err
		}
		if err := a.ChangePassphrase(oldP, newP); err != nil {
			return err
		}
		fmt.Println("Passphrase changed.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("database", "", "Metadata store type (sqlite, badger, memory)")
	configInitCmd.Flags().String("s3-bucket", "", "Store file contents in this S3 bucket")
	configInitCmd.Flags().String("encryption", "", "Encryption type (none, age)")

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// keys subcommands
	keysCmd.AddCommand(keysSetupCmd)
	keysCmd.AddCommand(keysPasswdCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
	mkdirCmd.Flags().BoolP("parents", "p", false, "Create missing parent folders")
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(adminCmd)
}
