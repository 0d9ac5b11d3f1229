package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/mollie-gateway/internal/app"
	"github.com/fatflowers/mollie-gateway/internal/app/service/gateway"
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
)

var Version = "dev"

// actions is the part of the gateway the CLI drives.
type actions interface {
	RefundDonationFromDashboard(ctx context.Context, donationID string) error
	CancelSubscription(ctx context.Context, recurringDonationID string) error
}

type deps struct {
	Actions  actions
	Registry *registry.Registry
}

// opener builds the dependencies and returns a func that releases them.
type opener func(ctx context.Context) (*deps, func(), error)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openApp(ctx context.Context) (*deps, func(), error) {
	var (
		gw  *gateway.Gateway
		reg *registry.Registry
	)
	a := fx.New(app.CoreModule, fx.NopLogger, fx.Populate(&gw, &reg))
	if err := a.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start: %w", err)
	}
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}
	return &deps{Actions: gw, Registry: reg}, stop, nil
}

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "donationctl",
		Short:         "Admin actions for Mollie donations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(refundCmd(open))
	rootCmd.AddCommand(cancelSubscriptionCmd(open))
	rootCmd.AddCommand(settingsCmd(open))
	return rootCmd
}

// withDeps runs fn with started dependencies and always releases them.
func withDeps(cmd *cobra.Command, open opener, fn func(ctx context.Context, d *deps) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), app.DefaultStartTimeout)
	defer cancel()
	d, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(cmd.Context(), d)
}

func refundCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "refund [donation-id]",
		Short: "Refund the full amount of a donation through Mollie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(ctx context.Context, d *deps) error {
				if err := d.Actions.RefundDonationFromDashboard(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "donation %s refunded\n", args[0])
				return nil
			})
		},
	}
}

func cancelSubscriptionCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-subscription [recurring-donation-id]",
		Short: "Cancel the Mollie subscription of a recurring donation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, open, func(ctx context.Context, d *deps) error {
				if err := d.Actions.CancelSubscription(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "subscription of recurring donation %s cancelled\n", args[0])
				return nil
			})
		},
	}
}

func settingsCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "settings [gateway]",
		Short: "Print the settings schema of a gateway (default mollie)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := gateway.ID
			if len(args) == 1 {
				id = args[0]
			}
			return withDeps(cmd, open, func(_ context.Context, d *deps) error {
				g, ok := d.Registry.Gateway(id)
				if !ok {
					return fmt.Errorf("unknown gateway %q", id)
				}
				return printJSON(cmd.OutOrStdout(), g.SettingsFields())
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
