package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"carwatch/internal/checksum"
	"carwatch/internal/config"
	"carwatch/internal/storage/file"
)

var verifyHash string

func init() {
	stateCmd.Flags().StringVar(&verifyHash, "verify", "", "expected list_hash from the run log; fails if the saved list differs")
	rootCmd.AddCommand(stateCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Prints the list saved by the last successful run.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		store := file.NewStore(cfg.Storage.StatePath)
		items, found, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !found {
			fmt.Fprintf(out, "No state saved yet at %s\n", store.Path())
			if verifyHash != "" {
				return fmt.Errorf("cannot verify %s: no state saved", verifyHash)
			}
			return nil
		}

		gen := checksum.NewGenerator()

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		// Хеш сверяется с list_hash из логов, регистр менять нельзя
		t.Style().Format.Footer = text.FormatDefault
		t.SetTitle(store.Path())
		t.AppendHeader(table.Row{"#", "Item"})
		for i, item := range items {
			t.AppendRow(table.Row{i + 1, item})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d items, sha256 %s", len(items), gen.GenerateListHash(items))})
		t.Render()

		if verifyHash != "" {
			if !gen.VerifyListHash(verifyHash, items) {
				return fmt.Errorf("saved list does not match hash %s", verifyHash)
			}
			fmt.Fprintln(out, "Saved list matches", verifyHash)
		}

		return nil
	},
}
