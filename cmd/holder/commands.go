package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a2f-auth/a2f/internal/config"
	"github.com/a2f-auth/a2f/internal/holder"
	"github.com/a2f-auth/a2f/internal/poller"
)

func rootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "a2f",
		Short:        "Ledger-backed second factor",
		Long:         "a2f authorizes providers and approves logins by sending token transfers on Algorand.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultHolderConfigPath(), "path to the TOML config file")
	root.AddCommand(
		providersCommand(a),
		addCommand(a),
		removeCommand(a),
		verifyCommand(a),
		debugCommand(a),
	)
	return root
}

func providersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "providers",
		Aliases: []string{"list"},
		Short:   "List authorized providers",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			names := a.profile.ProviderNames()
			if len(names) == 0 {
				cmd.Println("No authorized providers.")
				return
			}
			for _, name := range names {
				cmd.Println(name)
			}
		},
	}
}

func addCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add",
		Short: "Wait for a provider's authorization request and approve it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			consent := holder.NewPromptConsent()
			defer consent.Close()

			_, err := a.holder.Add(cmd.Context(), a.profile, consent)
			if errors.Is(err, poller.ErrTimeout) {
				return errors.New("no provider request arrived in time")
			}
			return err
		},
	}
}

func removeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Forget an authorized provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.profile.RemoveProvider(args[0]); err != nil {
				return err
			}
			cmd.Printf("Removed provider '%s'.\n", args[0])
			return nil
		},
	}
}

func verifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "verify <name>",
		Aliases: []string{"approve"},
		Short:   "Approve a pending login at a provider",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.holder.Verify(cmd.Context(), a.profile, args[0])
			if errors.Is(err, holder.ErrUnknownProvider) {
				return err
			}
			if err != nil {
				cmd.PrintErrf("Failed to send verification: %v\n", err)
			}
			return nil
		},
	}
}

func debugCommand(a *app) *cobra.Command {
	var withMnemonic bool
	c := &cobra.Command{
		Use:   "debug",
		Short: "Show account details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := a.holder.Debug(cmd.Context(), a.profile, withMnemonic)
			if err != nil {
				return fmt.Errorf("debug: %w", err)
			}
			info.Print(cmd.OutOrStdout())
			return nil
		},
	}
	c.Flags().BoolVar(&withMnemonic, "mnemonic", false, "also print the account mnemonic")
	return c
}
