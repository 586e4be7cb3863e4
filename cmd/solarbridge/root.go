package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/nerrad567/solar-bridge/internal/accessory"
	"github.com/nerrad567/solar-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/solar-bridge/internal/pairing"
)

func newRootCommand(ctx context.Context) *cobra.Command {
	opts := NewOptions()
	cmd := &cobra.Command{
		Use:   "solarbridge",
		Short: "Expose an MPP Solar inverter as a smart-home accessory",
		Long: "solarbridge polls an MPP Solar inverter and serves it as an accessory " +
			"over HTTP, WebSocket, MQTT and mDNS.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.LoadConfig(cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return run(ctx, cfg, logging.New(cfg.Logging, version))
		},
	}
	opts.AddFlags(cmd.Flags())

	cmd.AddCommand(
		newCharacteristicsCommand(),
		newSetupCodeCommand(),
		newVersionCommand(),
	)
	return cmd
}

func newCharacteristicsCommand() *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:   "characteristics",
		Short: "List the accessory's services and characteristics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, ok := accessory.LookupProfile(model)
			if !ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "unknown model %q, using %s rules (known: %v)\n",
					model, accessory.DefaultModel, accessory.Models())
			}
			acc := accessory.New(accessory.Info{Name: "MPP Solar", Manufacturer: "MPP Solar", Model: model}, profile)
			printCharacteristics(cmd.OutOrStdout(), acc.Snapshot())
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", accessory.DefaultModel, "Inverter model; selects the product profile.")
	return cmd
}

func printCharacteristics(w io.Writer, view accessory.View) {
	table := uitable.New()
	table.MaxColWidth = 48
	table.AddRow("SERVICE", "ID", "TYPE", "FORMAT", "UNIT", "PERMS", "DESCRIPTION")
	for _, svc := range view.Services {
		for _, c := range svc.Characteristics {
			table.AddRow(svc.ID, c.ID, c.Type, c.Format, c.Unit, c.Perms, c.Description)
		}
	}
	fmt.Fprintln(w, table)
}

func newSetupCodeCommand() *cobra.Command {
	var setupID string
	cmd := &cobra.Command{
		Use:   "setup-code",
		Short: "Print a random setup code and its setup URI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := pairing.GenerateSetupCode()
			if err != nil {
				return err
			}
			if setupID == "" {
				if setupID, err = pairing.GenerateSetupID(); err != nil {
					return err
				}
			}
			uri, err := pairing.SetupURI(code, pairing.CategoryOutlet, setupID)
			if err != nil {
				return err
			}

			table := uitable.New()
			table.AddRow("Setup code:", code)
			table.AddRow("Setup ID:", setupID)
			table.AddRow("Setup URI:", uri)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
	cmd.Flags().StringVar(&setupID, "setup-id", "", "Four-character setup ID. Random when empty.")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			table := uitable.New()
			table.AddRow("Version:", version)
			table.AddRow("Commit:", commit)
			table.AddRow("Built:", date)
			fmt.Fprintln(cmd.OutOrStdout(), table)
		},
	}
}
