package main

import (
	"fmt"
	"time"

	"github.com/dropDatabas3/gatehouse/internal/app"
	"github.com/dropDatabas3/gatehouse/internal/config"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/spf13/cobra"
)

// withApp builds the service for a one-shot operator command.
func withApp(cfg func() *config.Config, fn func(cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c := cfg()
		if c.Storage.Driver == "memory" {
			logger.From(cmd.Context()).Warn("storage driver is memory, changes are lost when this command exits")
		}
		a, err := app.Build(cmd.Context(), c, app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

func inviteCmd(cfg func() *config.Config) *cobra.Command {
	root := &cobra.Command{Use: "invite", Short: "Manage registration invitations"}

	var addr string
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an invitation and email its link",
		RunE: withApp(cfg, func(cmd *cobra.Command, a *app.App, _ []string) error {
			link, err := a.Auth.IssueInvitation(cmd.Context(), addr)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		}),
	}
	issue.Flags().StringVar(&addr, "email", "", "invitee email")
	_ = issue.MarkFlagRequired("email")

	root.AddCommand(issue)
	return root
}

func accountCmd(cfg func() *config.Config) *cobra.Command {
	root := &cobra.Command{Use: "account", Short: "Manage accounts"}

	var addr, name string
	provision := &cobra.Command{
		Use:   "provision",
		Short: "Create a passwordless account and send its activation link",
		RunE: withApp(cfg, func(cmd *cobra.Command, a *app.App, _ []string) error {
			acct, link, err := a.Auth.ProvisionAccount(cmd.Context(), addr, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", acct.ID, link)
			return nil
		}),
	}
	provision.Flags().StringVar(&addr, "email", "", "account email")
	provision.Flags().StringVar(&name, "name", "", "display name")
	_ = provision.MarkFlagRequired("email")

	root.AddCommand(provision)
	return root
}

func banCmd(cfg func() *config.Config) *cobra.Command {
	root := &cobra.Command{Use: "ban", Short: "Ban or unban an IP address or email"}

	var reason string
	var dur time.Duration
	add := &cobra.Command{
		Use:   "add <identity>",
		Args:  cobra.ExactArgs(1),
		Short: "Ban an identity",
		RunE: withApp(cfg, func(cmd *cobra.Command, a *app.App, args []string) error {
			return a.Auth.BanIdentity(cmd.Context(), args[0], reason, dur)
		}),
	}
	add.Flags().StringVar(&reason, "reason", "", "free-form reason")
	add.Flags().DurationVar(&dur, "for", 0, "ban duration; 0 is permanent")

	remove := &cobra.Command{
		Use:   "remove <identity>",
		Args:  cobra.ExactArgs(1),
		Short: "Lift a ban",
		RunE: withApp(cfg, func(cmd *cobra.Command, a *app.App, args []string) error {
			return a.Auth.UnbanIdentity(cmd.Context(), args[0])
		}),
	}

	root.AddCommand(add, remove)
	return root
}
