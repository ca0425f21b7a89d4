// Package cmd provides the laraflow CLI commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/output"
	"github.com/laraflow/laraflow/internal/runtime"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagConfig string
	flagFormat string
	flagColor  string
	flagDebug  bool
	flagDriver string
	flagDSN    string
)

// Command annotations that control runtime setup.
const (
	// annotationNoRuntime skips config loading entirely.
	annotationNoRuntime = "laraflow/no-runtime"
	// annotationNoStore loads config but leaves the store closed.
	annotationNoStore = "laraflow/no-store"
)

// ctx is the shared runtime context.
var ctx *runtime.Context

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "laraflow",
	Short: "Laraflow data maintenance: trash retention and deadline notifications",
	Long: `Laraflow runs the maintenance jobs of a Laraflow workspace: it permanently
erases trashed projects, lists and tasks once they pass the retention window,
and notifies assignees about tasks that are due soon or overdue.

Examples:
  laraflow trash sweep --dry-run
  laraflow notify deadlines
  laraflow daemon start
  laraflow task add <list-id> "Ship release" --due tomorrow --assign <user-id>`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsRuntime(cmd) {
			return nil
		}

		format, err := output.ParseFormat(flagFormat)
		if err != nil {
			return errors.NewUserErrorWithField("format", flagFormat, err.Error(), "Use --format cli, json or plain.")
		}
		colorMode, err := output.ParseColorMode(flagColor)
		if err != nil {
			return errors.NewUserErrorWithField("color", flagColor, err.Error(), "Use --color auto, always or never.")
		}

		opts := runtime.DefaultOptions()
		opts.ConfigPath = flagConfig
		opts.Driver = flagDriver
		opts.DSN = flagDSN
		opts.Format = format
		opts.ColorMode = colorMode
		opts.Debug = flagDebug

		cfg, err := runtime.LoadConfig(opts)
		if err != nil {
			return err
		}
		if cmd.Annotations[annotationNoStore] != "" {
			ctx = runtime.NewWithoutStore(cfg, opts)
		} else if ctx, err = runtime.NewWithConfig(cmd.Context(), cfg, opts); err != nil {
			return err
		}
		ctx.Printer.Writer = cmd.OutOrStdout()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ctx != nil {
			return ctx.Close()
		}
		return nil
	},
}

// skipsRuntime reports whether cmd or a parent opted out of runtime setup.
func skipsRuntime(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoRuntime] != "" {
			return true
		}
	}
	return false
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	printError(err)
	if ctx != nil {
		_ = ctx.Close()
	}
	return errors.ExitCode(err)
}

func printError(err error) {
	if ctx != nil && ctx.Printer != nil && ctx.IsJSON() {
		ctx.Printer.PrintError(err)
		return
	}
	if se, ok := errors.AsSystemError(err); ok {
		logging.Logger().Debug("command failed", "op", se.Op, logging.KeyError, se.Cause)
	}
	msg := errors.FormatByCategory(err)
	if flagDebug {
		msg = errors.FormatDebugError(err)
	}
	os.Stderr.WriteString("Error: " + msg + "\n")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Config file (default $XDG_CONFIG_HOME/laraflow/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "",
		"Storage driver: badger, sqlite, postgres (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "",
		"Storage location: Badger directory, SQLite file or Postgres URL (overrides config)")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print version information",
	Annotations: map[string]string{annotationNoRuntime: "true"},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("laraflow %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
	},
}
