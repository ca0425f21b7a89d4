package cmd

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/output"
)

// configShowFlagPath prints only the config file location.
var configShowFlagPath bool

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg"},
	Short:   "Inspect the effective configuration",
	Long: `Inspect the configuration after defaults, the config file and LARAFLOW_*
environment variables have been applied. Secrets in the DSN are masked.

Examples:
  laraflow config show
  laraflow config show --path
  LARAFLOW_RETENTION_DAYS=30 laraflow config show`,
	Annotations: map[string]string{annotationNoStore: "true"},
}

// configShowCmd prints the effective configuration.
var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration as YAML",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoStore: "true"},
	RunE:        runConfigShow,
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowFlagPath, "path", false,
		"Print the config file path only")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow handles the config show command.
func runConfigShow(cmd *cobra.Command, args []string) error {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	if configShowFlagPath {
		if ctx.IsJSON() {
			return ctx.Printer.JSON(map[string]string{"path": path})
		}
		ctx.Printer.Println(path)
		return nil
	}

	data, err := ctx.Config.YAML()
	if err != nil {
		return err
	}
	if ctx.Printer.Format == output.FormatJSON {
		// Round-trip through YAML so keys and durations match the file.
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return err
		}
		return ctx.Printer.JSON(doc)
	}
	if ctx.IsCLI() {
		ctx.Printer.CLI().Muted("# " + path)
	}
	ctx.Printer.Print(string(data))
	return nil
}
