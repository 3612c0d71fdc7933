// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/pkg/types"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// maxDetailWidth truncates long error messages in tables.
const maxDetailWidth = 80

func renderTable(w io.Writer, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if isTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxDetailWidth,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderSummary prints the batch totals and, when some rows failed, one line
// per failure.
func renderSummary(w io.Writer, result acquire.BatchResult, rows int) {
	totals := [][]string{{
		strconv.Itoa(result.Downloaded),
		strconv.Itoa(result.Skipped),
		strconv.Itoa(result.Failed),
		fmt.Sprintf("%d/%d", result.Total(), rows),
	}}
	fmt.Fprintln(w, renderTable(w,
		[]string{"Downloaded", "Skipped", "Failed", "Processed"},
		totals,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight}))

	if !result.HasFailures() {
		return
	}
	var failed [][]string
	for _, out := range result.Outcomes {
		if out.State != types.StateFailed {
			continue
		}
		failed = append(failed, []string{
			strconv.Itoa(out.PaperID),
			out.DOI,
			string(out.Kind),
			out.Message(),
		})
	}
	fmt.Fprintln(w, renderTable(w,
		[]string{"Paper", "DOI", "Kind", "Error"},
		failed,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
}

// outcomeRow formats one stored or manifest outcome for history listings.
func outcomeRow(paperID int, doi string, state types.State, kind types.FailureKind, detail string) []string {
	status := string(state)
	if kind != types.FailureNone {
		status += " (" + string(kind) + ")"
	}
	return []string{strconv.Itoa(paperID), doi, status, detail}
}
