package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/go-scrape-tyres/models"
)

func printSummary(out io.Writer, results []*models.RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run", "Status", "Pages", "Records", "Files", "Duration"})

	failed := 0
	for _, r := range results {
		status := "done"
		if r.Truncated {
			status = "done (page limit)"
		}
		if !r.Succeeded() {
			status = "failed (" + failureKind(r) + ")"
			failed++
		}
		name := r.RunID
		if name == "" {
			name = r.URL
		}
		t.AppendRow(table.Row{name, status, r.Pages, r.RecordCount, strings.Join(r.Files, "\n"), r.Duration().Round(time.Millisecond)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "failed", failed})
	t.Render()

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintln(out, r.Err)
		}
	}
}
