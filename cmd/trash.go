package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/output"
	"github.com/laraflow/laraflow/internal/parser"
	"github.com/laraflow/laraflow/internal/retention"
	"github.com/laraflow/laraflow/internal/validate"
)

// Trash command flags.
var (
	trashSweepFlagDays   int
	trashSweepFlagDryRun bool
	trashSweepFlagBatch  int
	trashSweepFlagTypes  string
	trashSweepFlagNow    string
)

// trashCmd represents the trash command.
var trashCmd = &cobra.Command{
	Use:     "trash [command]",
	Aliases: []string{"tr"},
	Short:   "Inspect and sweep soft-deleted records",
	Long: `Inspect the trash and permanently erase records that have been trashed
for longer than the retention window.

Examples:
  laraflow trash sweep --dry-run
  laraflow trash sweep --days 30 --types tasks,lists
  laraflow trash list tasks
  laraflow trash restore task <id>`,
	RunE: runTrashList,
}

// trashSweepCmd runs the retention sweep.
var trashSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Permanently erase records trashed before the retention cutoff",
	Long: `Erase records whose deletion time is older than the retention window.

Types are swept in order (children before parents by default) in batches.
A failure on one type is reported and the sweep continues with the next.
Unknown type names are reported as skipped.

Examples:
  laraflow trash sweep
  laraflow trash sweep --dry-run
  laraflow trash sweep --days 0 --batch 500
  laraflow trash sweep --now "2024-01-20 03:00"`,
	Args: cobra.NoArgs,
	RunE: runTrashSweep,
}

// trashListCmd lists trashed records.
var trashListCmd = &cobra.Command{
	Use:               "list [TYPE]",
	Aliases:           []string{"ls"},
	Short:             "List trashed records, oldest first",
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeEntityTypes,
	RunE:              runTrashList,
}

// trashRestoreCmd restores a trashed record.
var trashRestoreCmd = &cobra.Command{
	Use:               "restore TYPE ID",
	Short:             "Restore a trashed record",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeEntityTypes,
	RunE:              runTrashRestore,
}

// trashDeleteCmd erases a single trashed record immediately.
var trashDeleteCmd = &cobra.Command{
	Use:               "delete TYPE ID",
	Aliases:           []string{"rm"},
	Short:             "Permanently erase one trashed record now",
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: completeEntityTypes,
	RunE:              runTrashDelete,
}

func init() {
	trashSweepCmd.Flags().IntVar(&trashSweepFlagDays, "days", 0,
		"Retention window in days (default from config)")
	trashSweepCmd.Flags().BoolVar(&trashSweepFlagDryRun, "dry-run", false,
		"Count what would be erased without deleting")
	trashSweepCmd.Flags().IntVar(&trashSweepFlagBatch, "batch", 0,
		"Records erased per batch (default from config)")
	trashSweepCmd.Flags().StringVar(&trashSweepFlagTypes, "types", "",
		"Comma-separated entity types in sweep order (default from config)")
	trashSweepCmd.Flags().StringVar(&trashSweepFlagNow, "now", "",
		"Reference time for the cutoff (natural language or YYYY-MM-DD HH:MM)")

	trashCmd.AddCommand(trashSweepCmd)
	trashCmd.AddCommand(trashListCmd)
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.AddCommand(trashDeleteCmd)

	rootCmd.AddCommand(trashCmd)
}

// runTrashSweep handles the trash sweep command.
func runTrashSweep(cmd *cobra.Command, args []string) error {
	opts := retention.OptionsFromConfig(ctx.Config)
	opts.DryRun = trashSweepFlagDryRun

	if cmd.Flags().Changed("days") {
		if err := validate.Positive("days", trashSweepFlagDays, true); err != nil {
			return err
		}
		opts.RetentionDays = trashSweepFlagDays
	}
	if cmd.Flags().Changed("batch") {
		if err := validate.Positive("batch", trashSweepFlagBatch, false); err != nil {
			return err
		}
		opts.BatchSize = trashSweepFlagBatch
	}
	if cmd.Flags().Changed("types") {
		opts.EntityTypes = parser.ParseEntityTypes(trashSweepFlagTypes)
		if len(opts.EntityTypes) == 0 {
			return errors.NewUserErrorWithField("types", trashSweepFlagTypes,
				"No entity types given", "Use a list like tasks,lists,projects.")
		}
	}

	now, err := resolveNow(trashSweepFlagNow)
	if err != nil {
		return err
	}
	sweeper := ctx.Sweeper()
	sweeper.Now = func() time.Time { return now }

	report, err := sweeper.Run(cmd.Context(), opts)
	if err != nil {
		return errors.NewSystemErrorWithOp("trash sweep", "retention sweep failed", err)
	}
	return ctx.Printer.SweepReport(report)
}

// runTrashList handles the trash list command.
func runTrashList(cmd *cobra.Command, args []string) error {
	types := model.DefaultSweepOrder()
	if len(args) == 1 {
		entity, err := parseEntity(args[0])
		if err != nil {
			return err
		}
		types = []model.EntityType{entity}
	}

	out := []output.TrashedOutput{}
	for _, entity := range types {
		recs, err := ctx.Store.ListTrashed(cmd.Context(), entity)
		if err != nil {
			return err
		}
		out = append(out, output.NewTrashedOutputs(entity, recs)...)
	}
	return ctx.Printer.Trashed(out)
}

// runTrashRestore handles the trash restore command.
func runTrashRestore(cmd *cobra.Command, args []string) error {
	entity, err := parseEntity(args[0])
	if err != nil {
		return err
	}
	id := args[1]

	trashed, err := trashState(cmd.Context(), entity, id)
	if err != nil {
		return err
	}
	if !trashed {
		return errors.NewUserErrorWithField("id", id,
			fmt.Sprintf("%s %s is not in the trash", entity.Singular(), id), "")
	}
	if err := ctx.Store.RestoreEntity(cmd.Context(), entity, id); err != nil {
		return err
	}
	return ctx.Printer.Done(fmt.Sprintf("Restored %s", entity.Singular()), id)
}

// runTrashDelete handles the trash delete command.
func runTrashDelete(cmd *cobra.Command, args []string) error {
	entity, err := parseEntity(args[0])
	if err != nil {
		return err
	}
	id := args[1]

	trashed, err := trashState(cmd.Context(), entity, id)
	if err != nil {
		return err
	}
	if !trashed {
		return errors.NewUserErrorWithField("id", id,
			fmt.Sprintf("%s %s is not in the trash", entity.Singular(), id),
			fmt.Sprintf("Trash it first with 'laraflow %s trash %s'.", entity.Singular(), id))
	}

	if _, err := ctx.Store.EraseEntities(cmd.Context(), entity, []string{id}); err != nil {
		return err
	}
	return ctx.Printer.Done(fmt.Sprintf("Erased %s", entity.Singular()), id)
}
