package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/frontdesk/api"
	"github.com/warp/frontdesk/cashdesk"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [scenario]",
		Short: "Wipe the database and load a demo scenario",
		Long: `Wipe the database and load a demo scenario.

Every table is cleared first. Use --list to see the scenarios.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSeed,
	}
	cmd.Flags().Bool("list", false, "list available scenarios")
	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	list, _ := cmd.Flags().GetBool("list")
	if list || len(args) == 0 {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDESCRIPTION")
		for _, s := range api.Scenarios() {
			fmt.Fprintf(tw, "%s\t%s\n", s.ID, s.Description)
		}
		return tw.Flush()
	}

	drawer, err := cfg.Desk.Channels()
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	desk := cashdesk.NewDesk(store, cashdesk.Config{
		DrawerChannels: drawer,
		Logger:         slog.Default().With("component", "cashdesk"),
	})
	if err := api.LoadScenario(cmd.Context(), desk, store, args[0]); err != nil {
		return err
	}

	slog.Info("scenario loaded", "scenario", args[0], "database", cfg.Database.Path)
	return nil
}
