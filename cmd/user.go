package cmd

import (
	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/validate"
)

// userCmd represents the user command.
var userCmd = &cobra.Command{
	Use:     "user [command]",
	Aliases: []string{"u", "users"},
	Short:   "Manage members who own projects and receive notifications",
	RunE:    runUserList,
}

// userAddCmd adds a user.
var userAddCmd = &cobra.Command{
	Use:   "add NAME EMAIL",
	Short: "Add a user",
	Long: `Add a user. The printed ID is used to assign tasks and read the inbox.

Examples:
  laraflow user add "Ada Lovelace" ada@example.com`,
	Args: cobra.ExactArgs(2),
	RunE: runUserAdd,
}

// userListCmd lists users.
var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	Args:    cobra.NoArgs,
	RunE:    runUserList,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)

	rootCmd.AddCommand(userCmd)
}

// runUserAdd handles the user add command.
func runUserAdd(cmd *cobra.Command, args []string) error {
	name, err := validate.Name("name", args[0], validate.MaxNameLength)
	if err != nil {
		return err
	}
	email, err := validate.Email(args[1])
	if err != nil {
		return err
	}

	user := model.NewUser(name, email)
	if err := ctx.Store.CreateUser(cmd.Context(), user); err != nil {
		return err
	}
	return ctx.Printer.Done("Added user "+user.Name, user.ID)
}

// runUserList handles the user list command.
func runUserList(cmd *cobra.Command, args []string) error {
	users, err := ctx.Store.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	return ctx.Printer.Users(users)
}
