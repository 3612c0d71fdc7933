// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/internal/ledger"
	"github.com/pdiddy/paperfetch/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List earlier batches and their outcomes",
	Long: `History reads a run ledger written by "download --ledger" and lists runs,
newest first. With --run it lists the outcomes of one run ("latest" selects
the most recent); --failed keeps only failed rows.

With --manifest it lists the outcomes stored in a YAML manifest instead.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("ledger", "", "SQLite run ledger to read")
	historyCmd.Flags().String("manifest", "", "YAML manifest to read instead of a ledger")
	historyCmd.Flags().String("run", "", `run id to list, or "latest"`)
	historyCmd.Flags().Bool("failed", false, "only list failed rows")
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to list (0 for all)")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ledgerPath, _ := cmd.Flags().GetString("ledger")
	manifestPath, _ := cmd.Flags().GetString("manifest")
	runID, _ := cmd.Flags().GetString("run")
	onlyFailed, _ := cmd.Flags().GetBool("failed")
	limit, _ := cmd.Flags().GetInt("limit")

	if manifestPath != "" {
		return listManifest(cmd, manifestPath, onlyFailed)
	}
	if ledgerPath == "" {
		return fmt.Errorf("provide --ledger or --manifest")
	}

	store, err := ledger.OpenReadOnly(ledgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if runID == "" {
		runs, err := store.Runs(ctx, limit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				r.ID,
				humanize.Time(r.StartedAt),
				r.InputPath,
				r.OutputDir,
				strconv.Itoa(r.Downloaded),
				strconv.Itoa(r.Skipped),
				strconv.Itoa(r.Failed),
			})
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderTable(out,
			[]string{"Run", "Started", "Input", "Output", "Downloaded", "Skipped", "Failed"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight}))
		return nil
	}

	if runID == "latest" {
		runID, err = store.LatestRunID(ctx)
		if err != nil {
			return err
		}
		if runID == "" {
			return fmt.Errorf("ledger %s has no runs", ledgerPath)
		}
	}
	entries, err := store.Outcomes(ctx, runID, onlyFailed)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Error
		if e.State == types.StateDone {
			detail = e.URL
		}
		rows = append(rows, outcomeRow(e.PaperID, e.DOI, e.State, e.Kind, detail))
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(out,
		[]string{"Paper", "DOI", "State", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
	return nil
}

func listManifest(cmd *cobra.Command, path string, onlyFailed bool) error {
	m, err := acquire.ReadManifest(path)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(m.Records))
	for _, rec := range m.Records {
		if onlyFailed && rec.State != types.StateFailed {
			continue
		}
		detail := rec.Error
		if rec.State == types.StateDone {
			detail = rec.URL
		}
		rows = append(rows, outcomeRow(rec.PaperID, rec.DOI, rec.State, rec.Kind, detail))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generated %s: %d downloaded, %d skipped, %d failed\n",
		humanize.Time(m.GeneratedAt), m.Downloaded, m.Skipped, m.Failed)
	fmt.Fprintln(out, renderTable(out,
		[]string{"Paper", "DOI", "State", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
	return nil
}
