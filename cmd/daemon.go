package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/daemon"
	"github.com/laraflow/laraflow/internal/errors"
)

// Daemon command flags.
var (
	daemonStartFlagForeground bool
	daemonLogsFlagTail        int
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:     "daemon [command]",
	Aliases: []string{"d", "bg"},
	Short:   "Run the maintenance jobs on a schedule",
	Long: `Manage the background daemon that runs the retention sweep and the
deadline notifier on their cron schedules (retention.schedule and
deadlines.schedule in the config). The daemon serves /metrics and /healthz
on daemon.metrics_addr and reloads the config file when it changes or on
SIGHUP.

With the badger driver only one process may open the store, so stop the
daemon before running store commands, or use sqlite or postgres.

Examples:
  laraflow daemon start
  laraflow daemon start --foreground
  laraflow daemon status
  laraflow daemon trigger
  laraflow daemon stop`,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runDaemonStatus,
}

// daemonStartCmd starts the daemon.
var daemonStartCmd = &cobra.Command{
	Use:         "start",
	Short:       "Start the daemon",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runDaemonStart,
}

// daemonStopCmd stops the daemon.
var daemonStopCmd = &cobra.Command{
	Use:         "stop",
	Short:       "Stop the daemon",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runDaemonStop,
}

// daemonStatusCmd shows daemon status.
var daemonStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show daemon status",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runDaemonStatus,
}

// daemonTriggerCmd asks the daemon to run its jobs now.
var daemonTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Run the sweep and deadline jobs in the daemon now",
	Long: `Ask the running daemon to run every job immediately, outside the cron
schedule. A job that is already running is left alone. Results are written
to the daemon log and to /healthz.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runDaemonTrigger,
}

// daemonLogsCmd shows daemon logs.
var daemonLogsCmd = &cobra.Command{
	Use:         "logs",
	Short:       "Show the end of the daemon log",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runDaemonLogs,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlagForeground, "foreground", false,
		"Run in the foreground instead of detaching")
	daemonLogsCmd.Flags().IntVarP(&daemonLogsFlagTail, "tail", "n", 20,
		"Number of lines to show")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonTriggerCmd)
	daemonCmd.AddCommand(daemonLogsCmd)

	rootCmd.AddCommand(daemonCmd)
}

func newDaemon() *daemon.Daemon {
	return daemon.New(daemon.DefaultPaths(), ctx.Config.Daemon)
}

// runDaemonStart handles the daemon start command. The background parent
// never opens the store so the child can take the Badger lock.
func runDaemonStart(cmd *cobra.Command, args []string) error {
	d := newDaemon()

	if !daemonStartFlagForeground {
		pid, err := d.StartBackground(childArgs())
		if err != nil {
			if errors.Is(err, daemon.ErrAlreadyRunning) {
				return errors.NewUserError(fmt.Sprintf("daemon is already running (PID: %d)", pid),
					"Stop it with 'laraflow daemon stop'.")
			}
			return err
		}
		if ctx.IsJSON() {
			return ctx.Printer.JSON(d.GetStatus())
		}
		return ctx.Printer.Done("Daemon started", fmt.Sprintf("PID %d", pid))
	}

	if d.IsRunning() {
		return errors.NewUserError(fmt.Sprintf("daemon is already running (PID: %d)", d.GetStatus().PID),
			"Stop it with 'laraflow daemon stop'.")
	}
	if err := ctx.Open(cmd.Context()); err != nil {
		return err
	}
	if n := ctx.Dispatcher().CountEnabledWebhooks(cmd.Context()); n == 0 && ctx.IsCLI() {
		ctx.Printer.CLI().Warning("No webhooks enabled; notifications go to the inbox only.")
	}

	configPath := flagConfig
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	return d.Run(cmd.Context(), ctx, daemon.RunOptions{
		ConfigPath: configPath,
		Version:    Version,
	})
}

// childArgs forwards the global flags to the background process.
func childArgs() []string {
	var args []string
	if flagConfig != "" {
		args = append(args, "--config", flagConfig)
	}
	if flagDriver != "" {
		args = append(args, "--driver", flagDriver)
	}
	if flagDSN != "" {
		args = append(args, "--dsn", flagDSN)
	}
	if flagDebug {
		args = append(args, "--debug")
	}
	return args
}

// runDaemonStop handles the daemon stop command.
func runDaemonStop(cmd *cobra.Command, args []string) error {
	d := newDaemon()
	status := d.GetStatus()
	if !status.Running {
		return ctx.Printer.Done("Daemon is not running", "")
	}
	if err := d.Stop(); err != nil {
		return err
	}
	return ctx.Printer.Done("Daemon stopped", fmt.Sprintf("was PID %d", status.PID))
}

// runDaemonTrigger handles the daemon trigger command.
func runDaemonTrigger(cmd *cobra.Command, args []string) error {
	pid, err := newDaemon().Trigger()
	if errors.Is(err, daemon.ErrNotRunning) {
		return &errors.UserError{
			Message: "daemon is not running",
			Cause:   errors.ErrDaemonNotRunning,
		}
	}
	if err != nil {
		return errors.NewSystemError("failed to trigger daemon", err)
	}
	return ctx.Printer.Done("Jobs triggered", fmt.Sprintf("PID %d", pid))
}

// runDaemonStatus handles the daemon status command.
func runDaemonStatus(cmd *cobra.Command, args []string) error {
	status := newDaemon().GetStatus()

	if ctx.IsJSON() {
		return ctx.Printer.JSON(status)
	}

	cli := ctx.Printer.CLI()
	cli.Title("Laraflow daemon")
	if !status.Running {
		cli.KeyValue("Status", cli.Status("stopped"))
		cli.KeyValue("Log", status.LogPath)
		cli.Muted("Start with: laraflow daemon start")
		return nil
	}
	cli.KeyValue("Status", cli.Status("running"))
	cli.KeyValue("PID", status.PID)
	cli.KeyValue("Uptime", status.Uptime)
	if status.MetricsAddr != "" {
		cli.KeyValue("Metrics", "http://"+status.MetricsAddr+"/metrics")
	}
	cli.KeyValue("Log", status.LogPath)
	return nil
}

// runDaemonLogs handles the daemon logs command.
func runDaemonLogs(cmd *cobra.Command, args []string) error {
	path := daemon.DefaultPaths().Log()
	lines, err := daemon.TailLog(path, daemonLogsFlagTail)
	if err != nil {
		return errors.NewUserErrorWithField("log", path, "no daemon log found", "Start the daemon with 'laraflow daemon start'.")
	}
	for _, line := range lines {
		ctx.Printer.Println(line)
	}
	return nil
}
