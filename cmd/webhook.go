package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/cobra"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/parser"
	"github.com/laraflow/laraflow/internal/repo"
	"github.com/laraflow/laraflow/internal/validate"
)

// webhookTestTimeout bounds a test send including retries.
const webhookTestTimeout = 2 * time.Minute

// Webhook command flags.
var (
	webhookAddFlagType     string
	webhookAddFlagTemplate string
	webhookAddFlagEvents   string
)

// webhookCmd represents the webhook command.
var webhookCmd = &cobra.Command{
	Use:     "webhook [command]",
	Aliases: []string{"w", "wh", "hook"},
	Short:   "Configure notification webhooks",
	Long: `Configure webhooks for Discord, Slack, Teams, or custom endpoints.

Deadline notifications are posted to every enabled webhook subscribed to
their kind. Without webhooks the inbox record is the only delivery.

Examples:
  laraflow webhook add team https://hooks.slack.com/services/...
  laraflow webhook add ops https://example.com/hook --type generic --events task_overdue
  laraflow webhook list
  laraflow webhook test team
  laraflow webhook remove team`,
	RunE: runWebhookList,
}

// webhookAddCmd adds a new webhook.
var webhookAddCmd = &cobra.Command{
	Use:   "add NAME URL",
	Short: "Add a new webhook",
	Long: `Add a webhook for receiving notifications.

The webhook type is auto-detected from the URL:
  - Discord: discord.com/api/webhooks/...
  - Slack:   hooks.slack.com/services/...
  - Teams:   *.webhook.office.com/...
  - Generic: Any other URL

Generic webhooks accept a Go text/template body with .Type, .Title,
.Message, .Fields and .Timestamp.`,
	Args: cobra.ExactArgs(2),
	RunE: runWebhookAdd,
}

// webhookListCmd lists all webhooks.
var webhookListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all webhooks",
	Args:    cobra.NoArgs,
	RunE:    runWebhookList,
}

// webhookTestCmd tests a webhook.
var webhookTestCmd = &cobra.Command{
	Use:               "test NAME",
	Short:             "Send a test notification",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWebhookArgs,
	RunE:              runWebhookTest,
}

// webhookRemoveCmd removes a webhook.
var webhookRemoveCmd = &cobra.Command{
	Use:               "remove NAME",
	Aliases:           []string{"rm", "delete"},
	Short:             "Remove a webhook",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWebhookArgs,
	RunE:              runWebhookRemove,
}

// webhookEnableCmd enables a webhook.
var webhookEnableCmd = &cobra.Command{
	Use:               "enable NAME",
	Short:             "Enable a webhook",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWebhookArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWebhookEnabled(cmd.Context(), args[0], true)
	},
}

// webhookDisableCmd disables a webhook.
var webhookDisableCmd = &cobra.Command{
	Use:               "disable NAME",
	Short:             "Disable a webhook",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeWebhookArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setWebhookEnabled(cmd.Context(), args[0], false)
	},
}

func init() {
	webhookAddCmd.Flags().StringVarP(&webhookAddFlagType, "type", "t", "",
		"Webhook type: discord, slack, teams, generic (auto-detected from URL if not specified)")
	webhookAddCmd.Flags().StringVar(&webhookAddFlagTemplate, "template", "",
		"Payload template (generic webhooks only)")
	webhookAddCmd.Flags().StringVar(&webhookAddFlagEvents, "events", "",
		"Comma-separated notification kinds to receive (default: all)")

	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookTestCmd)
	webhookCmd.AddCommand(webhookRemoveCmd)
	webhookCmd.AddCommand(webhookEnableCmd)
	webhookCmd.AddCommand(webhookDisableCmd)

	rootCmd.AddCommand(webhookCmd)
}

// completeWebhookArgs provides completion for webhook names.
func completeWebhookArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 || ctx == nil || ctx.Store == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	webhooks, err := ctx.Store.ListWebhooks(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var names []string
	for _, wh := range webhooks {
		if strings.HasPrefix(wh.Name, toComplete) {
			names = append(names, wh.Name+"\t"+wh.Type)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// runWebhookAdd handles the webhook add command.
func runWebhookAdd(cmd *cobra.Command, args []string) error {
	name, webhookURL := args[0], args[1]

	if err := validate.WebhookName(name); err != nil {
		return err
	}
	if err := validate.URL(webhookURL); err != nil {
		return err
	}

	if _, err := ctx.Store.GetWebhook(cmd.Context(), name); err == nil {
		return errors.NewUserErrorWithField("name", name,
			fmt.Sprintf("webhook %q already exists", name),
			fmt.Sprintf("Remove it first with 'laraflow webhook remove %s'.", name))
	} else if !repo.IsNotFound(err) {
		return err
	}

	webhookType := webhookAddFlagType
	if webhookType == "" {
		webhookType = model.DetectWebhookType(webhookURL)
	}
	if !model.IsValidWebhookType(webhookType) {
		return errors.NewUserErrorWithField("type", webhookType,
			"invalid webhook type", "Use discord, slack, teams or generic.")
	}

	webhook := model.NewWebhook(name, webhookType, webhookURL)

	if webhookAddFlagTemplate != "" {
		if webhookType != model.WebhookTypeGeneric {
			return errors.NewUserErrorWithField("template", webhookAddFlagTemplate,
				"templates apply to generic webhooks only", "Add --type generic.")
		}
		if _, err := template.New(name).Parse(webhookAddFlagTemplate); err != nil {
			return errors.NewUserErrorWithField("template", webhookAddFlagTemplate,
				"invalid template: "+err.Error(), "Use Go text/template syntax, for example '{{.Title}}'.")
		}
		webhook.Template = webhookAddFlagTemplate
	}

	if webhookAddFlagEvents != "" {
		events, err := model.ParseNotificationTypes(parser.SplitList(webhookAddFlagEvents))
		if err != nil {
			return errors.NewUserErrorWithField("events", webhookAddFlagEvents,
				err.Error(), "Use task_due_soon and/or task_overdue.")
		}
		webhook.Events = events
	}

	if err := ctx.Store.CreateWebhook(cmd.Context(), webhook); err != nil {
		return err
	}

	if ctx.IsCLI() {
		cli := ctx.Printer.CLI()
		cli.Success("Added webhook " + cli.Name(name))
		cli.KeyValue("Type", webhook.Type)
		cli.KeyValue("URL", webhook.MaskedURL())
		cli.Muted(fmt.Sprintf("Test with: laraflow webhook test %s", name))
		return nil
	}
	return ctx.Printer.Done("Added webhook", name)
}

// runWebhookList handles the webhook list command.
func runWebhookList(cmd *cobra.Command, args []string) error {
	webhooks, err := ctx.Store.ListWebhooks(cmd.Context())
	if err != nil {
		return err
	}
	return ctx.Printer.Webhooks(webhooks)
}

// runWebhookTest handles the webhook test command.
func runWebhookTest(cmd *cobra.Command, args []string) error {
	name := args[0]
	if _, err := ctx.Store.GetWebhook(cmd.Context(), name); err != nil {
		return notFound(err, "webhook", name)
	}

	c, cancel := context.WithTimeout(cmd.Context(), webhookTestTimeout)
	defer cancel()

	result := ctx.Dispatcher().TestWebhook(c, name)
	if err := ctx.Printer.WebhookTest(result); err != nil {
		return err
	}
	if !result.Success {
		return errors.NewSystemErrorWithOp("webhook test", "test notification failed", result.Error)
	}
	return nil
}

// runWebhookRemove handles the webhook remove command.
func runWebhookRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := ctx.Store.DeleteWebhook(cmd.Context(), name); err != nil {
		return notFound(err, "webhook", name)
	}
	return ctx.Printer.Done("Removed webhook", name)
}

func setWebhookEnabled(c context.Context, name string, enabled bool) error {
	if err := ctx.Store.SetWebhookEnabled(c, name, enabled); err != nil {
		return notFound(err, "webhook", name)
	}
	if enabled {
		return ctx.Printer.Done("Enabled webhook", name)
	}
	return ctx.Printer.Done("Disabled webhook", name)
}
