package cmd

import (
	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/validate"
)

// List command flags.
var (
	listAddFlagPosition int
	listListFlagTrashed bool
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:     "list [command]",
	Aliases: []string{"l", "lists"},
	Short:   "Manage task lists inside projects",
	Long: `Manage task lists. A list belongs to one project.

Examples:
  laraflow list add <project-id> Backlog
  laraflow list list <project-id>
  laraflow list trash <id>`,
}

// listAddCmd adds a list to a project.
var listAddCmd = &cobra.Command{
	Use:   "add PROJECT NAME",
	Short: "Add a list to a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runListAdd,
}

// listListCmd lists a project's lists.
var listListCmd = &cobra.Command{
	Use:     "list PROJECT",
	Aliases: []string{"ls"},
	Short:   "Show the lists of a project",
	Args:    cobra.ExactArgs(1),
	RunE:    runListList,
}

// listTrashCmd trashes a list.
var listTrashCmd = &cobra.Command{
	Use:   "trash ID",
	Short: "Move a list to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return trashEntity(cmd.Context(), model.EntityLists, args[0])
	},
}

func init() {
	listAddCmd.Flags().IntVar(&listAddFlagPosition, "position", -1,
		"Position within the project (default: last)")
	listListCmd.Flags().BoolVar(&listListFlagTrashed, "trashed", false,
		"Include trashed lists")

	listCmd.AddCommand(listAddCmd)
	listCmd.AddCommand(listListCmd)
	listCmd.AddCommand(listTrashCmd)

	rootCmd.AddCommand(listCmd)
}

// runListAdd handles the list add command.
func runListAdd(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	project, err := ctx.Store.GetProject(cmd.Context(), projectID)
	if err != nil {
		return notFound(err, "project", projectID)
	}
	if project.IsTrashed() {
		return errors.NewUserErrorWithField("project", projectID,
			"project "+projectID+" is in the trash",
			"Restore it with 'laraflow trash restore project "+projectID+"'.")
	}

	name, err := validate.Name("name", args[1], validate.MaxNameLength)
	if err != nil {
		return err
	}

	position := listAddFlagPosition
	if position < 0 {
		existing, err := ctx.Store.ListLists(cmd.Context(), project.ID, true)
		if err != nil {
			return err
		}
		position = len(existing)
	}

	list := model.NewTaskList(project.ID, name, position)
	if err := ctx.Store.CreateList(cmd.Context(), list); err != nil {
		return err
	}
	return ctx.Printer.Done("Added list "+list.Name, list.ID)
}

// runListList handles the list list command.
func runListList(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	if _, err := ctx.Store.GetProject(cmd.Context(), projectID); err != nil {
		return notFound(err, "project", projectID)
	}
	lists, err := ctx.Store.ListLists(cmd.Context(), projectID, listListFlagTrashed)
	if err != nil {
		return err
	}
	return ctx.Printer.Lists(lists)
}
