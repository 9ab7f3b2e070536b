package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	trove "github.com/unowned-ai/trove/pkg"
	"github.com/unowned-ai/trove/pkg/config"
	pkgdb "github.com/unowned-ai/trove/pkg/db"
	"github.com/unowned-ai/trove/pkg/keeper"
	"github.com/unowned-ai/trove/pkg/utils"
)

// rootOptions holds the global flags and the configuration resolved from them.
type rootOptions struct {
	ConfigPath string
	DBPath     string
	PhotosDir  string
	WAL        bool
	Sync       string
	Verbose    bool

	cfg    config.Config
	logger *slog.Logger
}

// load resolves defaults, config file, environment and then flags, in that
// order of precedence.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = o.DBPath
	}
	if flags.Changed("photos") {
		cfg.PhotosDir = o.PhotosDir
	}
	if flags.Changed("wal") {
		cfg.WAL = o.WAL
	}
	if flags.Changed("sync") {
		cfg.Sync = o.Sync
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	o.cfg = cfg
	o.logger = cfg.NewLogger(cmd.ErrOrStderr(), o.Verbose)
	return nil
}

// openKeeper opens the stores named by the resolved configuration.
func (o *rootOptions) openKeeper(ctx context.Context) (*keeper.Keeper, error) {
	k, err := keeper.Open(ctx, o.cfg, o.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open trove at %s: %w", o.cfg.DBPath, err)
	}
	return k, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "trove",
		Short:         "A personal tracker for the things you keep, with categories and photos.",
		Version:       fmt.Sprintf("v%s", trove.Version),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", fmt.Sprintf("Path to the YAML config file (default %s if present)", utils.DefaultConfigPath()))
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "Path to the database file (uses a system-specific default if not provided)")
	cmd.PersistentFlags().StringVar(&opts.PhotosDir, "photos", "", "Directory holding imported photos")
	cmd.PersistentFlags().BoolVar(&opts.WAL, "wal", true, "Enable SQLite WAL (Write-Ahead Logging) mode")
	cmd.PersistentFlags().StringVar(&opts.Sync, "sync", "FULL", "SQLite synchronous pragma (OFF, NORMAL, FULL, EXTRA)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(
		newCompletionCommand(cmd),
		newVersionCommand(),
		newDBCommand(opts),
		newItemsCommand(opts),
		newPhotosCommand(opts),
		newMCPCommand(opts),
		newTUICommand(opts),
	)
	return cmd
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

func newCompletionCommand(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   fmt.Sprintf("completion %s", strings.Join(completionShells, "|")),
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for trove.

The command prints a completion script to stdout. You can source it in your shell
or install it to the appropriate location for your shell to enable completions permanently.

Examples:

  Bash (current shell):
    $ source <(trove completion bash)

  Zsh:
    $ trove completion zsh > "${fpath[1]}/_trove"

  Fish:
    $ trove completion fish > ~/.config/fish/completions/trove.fish

  PowerShell:
    PS> trove completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             completionShells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		PersistentPreRunE:     func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return root.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return root.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return root.GenPowerShellCompletion(cmd.OutOrStdout())
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version number of trove",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), trove.Version)
		},
	}
}

func newDBCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the trove database",
		Long:  `Provides commands for managing the trove SQLite database, including schema upgrades.`,
	}

	upgrade := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the database schema to the latest version",
		Long: `Connects to the SQLite database and applies any pending schema migrations for the
itemsdb component. A database that does not exist yet is created at the latest schema.
Databases written by a newer trove are refused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := utils.ResolveAndEnsureDBPath(opts.cfg.DBPath)
			if err != nil {
				return err
			}
			opts.logger.Info("upgrading database", "db", path, "wal", opts.cfg.WAL, "sync", opts.cfg.Sync)

			conn, err := pkgdb.OpenDBConnection(path, opts.cfg.WAL, opts.cfg.Sync)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := pkgdb.UpgradeDB(conn, path, pkgdb.TargetSchemaVersion); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s is at schema version %d.\n", path, pkgdb.TargetSchemaVersion)
			return nil
		},
	}

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the schema version of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := utils.ExpandPath(opts.cfg.DBPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return WrapExitError(ExitFailure, "database not found", err)
			}

			conn, err := pkgdb.OpenDBConnection(path, opts.cfg.WAL, opts.cfg.Sync)
			if err != nil {
				return err
			}
			defer conn.Close()

			v, err := pkgdb.GetComponentSchemaVersion(conn, pkgdb.ItemsDBComponent)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (latest %d)\n", pkgdb.ItemsDBComponent, v, pkgdb.TargetSchemaVersion)
			return nil
		},
	}

	cmd.AddCommand(upgrade, version)
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(GetExitCode(err))
	}
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

// Exit codes
const (
	ExitFailure      = 1 // the command ran and failed
	ExitCommandError = 2 // the command was invoked incorrectly
)

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
