package cmd

import (
	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/parser"
	"github.com/laraflow/laraflow/internal/validate"
)

// Task command flags.
var (
	taskAddFlagDue      string
	taskAddFlagTime     string
	taskAddFlagAssign   string
	taskListFlagProject string
	taskListFlagTrashed bool
)

// taskCmd represents the task command.
var taskCmd = &cobra.Command{
	Use:     "task [command]",
	Aliases: []string{"t", "tasks"},
	Short:   "Manage tasks",
	Long: `Manage tasks. Assigned open tasks with a due date receive due-soon and
overdue notifications.

Examples:
  laraflow task add <list-id> "Ship release" --due tomorrow --time 17:00 --assign <user-id>
  laraflow task add <list-id> "File taxes" --due 2024-04-15
  laraflow task list --project <project-id>
  laraflow task done <id>`,
	RunE: runTaskList,
}

// taskAddCmd adds a task to a list.
var taskAddCmd = &cobra.Command{
	Use:   "add LIST TITLE",
	Short: "Add a task to a list",
	Long: `Add a task to a list.

--due accepts YYYY-MM-DD, YYYY-MM-DD HH:MM or natural language such as
"tomorrow 5pm" or "in 3 days". A date without a time is due at the end of
that day. --time sets or overrides the time of day.`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskAdd,
}

// taskListCmd lists tasks.
var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE:    runTaskList,
}

// taskDoneCmd completes a task.
var taskDoneCmd = &cobra.Command{
	Use:   "done ID",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

// taskTrashCmd trashes a task.
var taskTrashCmd = &cobra.Command{
	Use:   "trash ID",
	Short: "Move a task to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return trashEntity(cmd.Context(), model.EntityTasks, args[0])
	},
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskAddFlagDue, "due", "d", "",
		"Due date (natural language or YYYY-MM-DD [HH:MM])")
	taskAddCmd.Flags().StringVar(&taskAddFlagTime, "time", "",
		"Due time of day (HH:MM)")
	taskAddCmd.Flags().StringVarP(&taskAddFlagAssign, "assign", "a", "",
		"Assignee user ID")

	taskListCmd.Flags().StringVarP(&taskListFlagProject, "project", "p", "",
		"Only tasks of this project")
	taskListCmd.Flags().BoolVar(&taskListFlagTrashed, "trashed", false,
		"Include trashed tasks")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskTrashCmd)

	rootCmd.AddCommand(taskCmd)
}

// runTaskAdd handles the task add command.
func runTaskAdd(cmd *cobra.Command, args []string) error {
	listID := args[0]
	list, err := ctx.Store.GetList(cmd.Context(), listID)
	if err != nil {
		return notFound(err, "list", listID)
	}
	if list.IsTrashed() {
		return errors.NewUserErrorWithField("list", listID,
			"list "+listID+" is in the trash",
			"Restore it with 'laraflow trash restore list "+listID+"'.")
	}

	title, err := validate.Name("title", args[1], validate.MaxTitleLength)
	if err != nil {
		return err
	}
	task := model.NewTask(list.ProjectID, list.ID, title)

	if taskAddFlagTime != "" && taskAddFlagDue == "" {
		return errors.NewUserErrorWithField("time", taskAddFlagTime,
			"--time needs a due date", "Add --due, for example --due tomorrow --time 17:00.")
	}
	if taskAddFlagDue != "" {
		loc := ctx.Config.Location()
		due := parser.ParseDue(taskAddFlagDue, ctx.Now(), loc)
		if due.Error != nil {
			return parser.AsUserError(due.Error)
		}
		due, err = parser.CombineDue(due, taskAddFlagTime, loc)
		if err != nil {
			return parser.AsUserError(err)
		}
		task.SetDue(due.Time.In(loc), due.HasTime)
	}

	if taskAddFlagAssign != "" {
		if _, err := ctx.Store.GetUser(cmd.Context(), taskAddFlagAssign); err != nil {
			return notFound(err, "user", taskAddFlagAssign)
		}
		task.AssignedTo = taskAddFlagAssign
	}

	if err := ctx.Store.CreateTask(cmd.Context(), task); err != nil {
		return err
	}
	return ctx.Printer.Done("Added task "+task.Title, task.ID)
}

// runTaskList handles the task list command.
func runTaskList(cmd *cobra.Command, args []string) error {
	if taskListFlagProject != "" {
		if _, err := ctx.Store.GetProject(cmd.Context(), taskListFlagProject); err != nil {
			return notFound(err, "project", taskListFlagProject)
		}
	}
	tasks, err := ctx.Store.ListTasks(cmd.Context(), taskListFlagProject, taskListFlagTrashed)
	if err != nil {
		return err
	}
	return ctx.Printer.Tasks(tasks, ctx.Now())
}

// runTaskDone handles the task done command.
func runTaskDone(cmd *cobra.Command, args []string) error {
	id := args[0]
	task, err := ctx.Store.GetTask(cmd.Context(), id)
	if err != nil {
		return notFound(err, "task", id)
	}
	if task.IsTrashed() {
		return errors.NewUserErrorWithField("id", id,
			"task "+id+" is in the trash",
			"Restore it with 'laraflow trash restore task "+id+"'.")
	}
	if !task.IsOpen() {
		return ctx.Printer.Done("Task already completed", task.ID)
	}

	task.Complete(ctx.Now())
	if err := ctx.Store.UpdateTask(cmd.Context(), task); err != nil {
		return err
	}
	return ctx.Printer.Done("Completed task "+task.Title, task.ID)
}
