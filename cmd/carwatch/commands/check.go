package commands

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"carwatch/internal/config"
	"carwatch/internal/reconcile"
	"carwatch/internal/storage/file"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetches the watched page and prints the extracted items without notifying or saving.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		logger := newLogger(cfg)
		defer func() { _ = logger.Close() }()

		f, scr, err := newPipeline(cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		resp, err := f.Fetch(ctx, cfg.WatchURL)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Fetched %d bytes\n", len(resp.Body))

		matches, err := scr.CountMatches(resp.Body)
		if err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		items, err := scr.ExtractItems(resp.Body)
		if err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		fmt.Fprintf(out, "✓ Found %d items (%d nodes matched %q)\n\n", len(items), matches, cfg.Selectors.Item)

		prior, found, err := file.NewStore(cfg.Storage.StatePath).Load(ctx)
		if err != nil {
			return err
		}
		cs := reconcile.Diff(prior, items)

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"#", "Item", "Status"})
		for i, item := range items {
			status := ""
			if found && cs.Added.Contains(item) {
				status = "new"
			}
			t.AppendRow(table.Row{i + 1, item, status})
		}
		if found {
			for _, item := range cs.Removed {
				t.AppendRow(table.Row{"-", item, "gone"})
			}
		}
		t.Render()

		return nil
	},
}
