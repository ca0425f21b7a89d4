package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/deadline"
	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/parser"
	"github.com/laraflow/laraflow/internal/repo"
)

// Notify command flags.
var (
	notifyDeadlinesFlagDueSoon string
	notifyDeadlinesFlagOverdue string
	notifyDeadlinesFlagNow     string
	notifyListFlagUnread       bool
)

// notifyCmd represents the notify command.
var notifyCmd = &cobra.Command{
	Use:     "notify [command]",
	Aliases: []string{"n"},
	Short:   "Send deadline notifications and read the inbox",
	Long: `Notify assignees about tasks that are due soon or overdue, and read the
notification inbox.

Each (assignee, kind, task, offset) is notified at most once. Offsets are in
hours: a due-soon offset of 24 catches tasks due in the clock hour starting
24 hours from now; an overdue offset of 1 catches tasks due in the clock hour
starting one hour ago.

Examples:
  laraflow notify deadlines
  laraflow notify deadlines --due-soon 24,2 --overdue 1
  laraflow notify list <user-id> --unread
  laraflow notify read <notification-id>`,
}

// notifyDeadlinesCmd runs the deadline notifier.
var notifyDeadlinesCmd = &cobra.Command{
	Use:   "deadlines",
	Short: "Notify assignees of due-soon and overdue tasks",
	Args:  cobra.NoArgs,
	RunE:  runNotifyDeadlines,
}

// notifyListCmd lists a user's notifications.
var notifyListCmd = &cobra.Command{
	Use:     "list USER",
	Aliases: []string{"ls"},
	Short:   "List a user's notifications, newest first",
	Args:    cobra.ExactArgs(1),
	RunE:    runNotifyList,
}

// notifyReadCmd marks a notification read.
var notifyReadCmd = &cobra.Command{
	Use:   "read ID",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotifyRead,
}

func init() {
	notifyDeadlinesCmd.Flags().StringVar(&notifyDeadlinesFlagDueSoon, "due-soon", "",
		"Due-soon offsets in hours, comma-separated (default from config)")
	notifyDeadlinesCmd.Flags().StringVar(&notifyDeadlinesFlagOverdue, "overdue", "",
		"Overdue offsets in hours, comma-separated (default from config)")
	notifyDeadlinesCmd.Flags().StringVar(&notifyDeadlinesFlagNow, "now", "",
		"Reference time (natural language or YYYY-MM-DD HH:MM)")

	notifyListCmd.Flags().BoolVarP(&notifyListFlagUnread, "unread", "u", false,
		"Only unread notifications")

	notifyCmd.AddCommand(notifyDeadlinesCmd)
	notifyCmd.AddCommand(notifyListCmd)
	notifyCmd.AddCommand(notifyReadCmd)

	rootCmd.AddCommand(notifyCmd)
}

// runNotifyDeadlines handles the notify deadlines command.
func runNotifyDeadlines(cmd *cobra.Command, args []string) error {
	opts := deadline.OptionsFromConfig(ctx.Config)

	if cmd.Flags().Changed("due-soon") {
		offsets, err := parser.ParseOffsets(notifyDeadlinesFlagDueSoon)
		if err != nil {
			return parser.AsUserError(err)
		}
		opts.DueSoonOffsets = offsets
	}
	if cmd.Flags().Changed("overdue") {
		offsets, err := parser.ParseOffsets(notifyDeadlinesFlagOverdue)
		if err != nil {
			return parser.AsUserError(err)
		}
		opts.OverdueOffsets = offsets
	}

	now, err := resolveNow(notifyDeadlinesFlagNow)
	if err != nil {
		return err
	}
	notifier := ctx.Notifier()
	notifier.Now = func() time.Time { return now }

	report, err := notifier.Run(cmd.Context(), opts)
	if err != nil {
		return errors.NewSystemErrorWithOp("notify deadlines", "deadline notification run failed", err)
	}
	return ctx.Printer.DeadlineReport(report)
}

// runNotifyList handles the notify list command.
func runNotifyList(cmd *cobra.Command, args []string) error {
	userID := args[0]
	if _, err := ctx.Store.GetUser(cmd.Context(), userID); err != nil {
		return notFound(err, "user", userID)
	}

	recs, err := ctx.Store.ListNotifications(cmd.Context(), userID, notifyListFlagUnread)
	if err != nil {
		return err
	}
	return ctx.Printer.Notifications(recs)
}

// runNotifyRead handles the notify read command.
func runNotifyRead(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := ctx.Store.MarkNotificationRead(cmd.Context(), id, ctx.Now()); err != nil {
		if repo.IsNotFound(err) {
			return errors.NewUserErrorWithField("id", id, "notification "+id+" not found",
				"Check the ID with 'laraflow notify list USER'.")
		}
		return err
	}
	return ctx.Printer.Done("Marked notification read", id)
}
