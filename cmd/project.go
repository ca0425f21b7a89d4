package cmd

import (
	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/validate"
)

// Project command flags.
var (
	projectAddFlagOwner    string
	projectListFlagTrashed bool
)

// projectCmd represents the project command.
var projectCmd = &cobra.Command{
	Use:     "project [command]",
	Aliases: []string{"p", "projects"},
	Short:   "Manage projects",
	Long: `Manage projects. Trashed projects stay restorable until the retention
sweep erases them.

Examples:
  laraflow project add "Website redesign" --owner <user-id>
  laraflow project list --trashed
  laraflow project trash <id>`,
	RunE: runProjectList,
}

// projectAddCmd adds a project.
var projectAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectAdd,
}

// projectListCmd lists projects.
var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	Args:    cobra.NoArgs,
	RunE:    runProjectList,
}

// projectTrashCmd trashes a project.
var projectTrashCmd = &cobra.Command{
	Use:   "trash ID",
	Short: "Move a project to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return trashEntity(cmd.Context(), model.EntityProjects, args[0])
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectAddFlagOwner, "owner", "",
		"Owning user ID")
	projectListCmd.Flags().BoolVar(&projectListFlagTrashed, "trashed", false,
		"Include trashed projects")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectTrashCmd)

	rootCmd.AddCommand(projectCmd)
}

// runProjectAdd handles the project add command.
func runProjectAdd(cmd *cobra.Command, args []string) error {
	name, err := validate.Name("name", args[0], validate.MaxNameLength)
	if err != nil {
		return err
	}
	if projectAddFlagOwner != "" {
		if _, err := ctx.Store.GetUser(cmd.Context(), projectAddFlagOwner); err != nil {
			return notFound(err, "user", projectAddFlagOwner)
		}
	}

	project := model.NewProject(name, projectAddFlagOwner)
	if err := ctx.Store.CreateProject(cmd.Context(), project); err != nil {
		return err
	}
	return ctx.Printer.Done("Added project "+project.Name, project.ID)
}

// runProjectList handles the project list command.
func runProjectList(cmd *cobra.Command, args []string) error {
	projects, err := ctx.Store.ListProjects(cmd.Context(), projectListFlagTrashed)
	if err != nil {
		return err
	}
	return ctx.Printer.Projects(projects)
}
