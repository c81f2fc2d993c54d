// Package report renders a run summary for the operator.
package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"cratedigger/internal/core"
	"cratedigger/internal/i18n"
)

const maxReasonWidth = 60

// Render formats the counters, the unresolved queries and the cancellation state of summary.
func Render(summary *core.RunSummary, localizer *i18n.Localizer) string {
	if localizer == nil {
		localizer = i18n.NewLocalizer(i18n.DefaultLanguage)
	}

	var b strings.Builder
	b.WriteString(renderCounts(summary, localizer))
	b.WriteString("\n")

	if summary.Cancelled {
		b.WriteString(localizer.T("summary.cancelled"))
		b.WriteString("\n")
	}
	if summary.Aborted != nil {
		b.WriteString(localizer.T("summary.aborted", summary.Aborted.Error()))
		b.WriteString("\n")
	}

	if len(summary.Unresolved) == 0 {
		b.WriteString(localizer.T("summary.all_resolved"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(renderUnresolved(summary.Unresolved, localizer))
	b.WriteString("\n")
	return b.String()
}

func renderCounts(summary *core.RunSummary, localizer *i18n.Localizer) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(localizer.T("summary.title"))

	rows := []struct {
		key   string
		value string
	}{
		{"summary.run_id", summary.RunID},
		{"summary.total", strconv.Itoa(summary.Total)},
		{"summary.attempted", strconv.Itoa(summary.Attempted)},
		{"summary.matched", strconv.Itoa(summary.Matched)},
		{"summary.written", strconv.Itoa(summary.Written)},
		{"summary.duplicates", strconv.Itoa(summary.SkippedDuplicate)},
		{"summary.skipped", strconv.Itoa(summary.Skipped)},
		{"summary.not_found", strconv.Itoa(summary.NotFound)},
		{"summary.rejected", strconv.Itoa(summary.Rejected)},
		{"summary.failed", strconv.Itoa(summary.Failed)},
	}
	for _, row := range rows {
		tw.AppendRow(table.Row{localizer.T(row.key), row.value})
	}

	if !summary.StartedAt.IsZero() && !summary.FinishedAt.IsZero() {
		duration := summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second)
		tw.AppendRow(table.Row{localizer.T("summary.duration"), duration.String()})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})

	return tw.Render()
}

func renderUnresolved(unresolved []core.UnresolvedQuery, localizer *i18n.Localizer) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(localizer.T("summary.unresolved"))
	tw.AppendHeader(table.Row{
		"#",
		localizer.T("summary.col_track"),
		localizer.T("summary.col_outcome"),
		localizer.T("summary.col_stage"),
		localizer.T("summary.col_reason"),
	})

	for i, u := range unresolved {
		tw.AppendRow(table.Row{i + 1, u.Query.String(), u.Outcome.String(), string(u.Stage), u.Reason})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 5, WidthMax: maxReasonWidth},
	})

	return tw.Render()
}
