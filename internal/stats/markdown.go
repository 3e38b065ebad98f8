package stats

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
)

// WriteMarkdown renders a snapshot as a Markdown run report: a run info
// table, the counter table, and a per-status-class breakdown.
func WriteMarkdown(w io.Writer, snap Snapshot) error {
	md := markdown.NewMarkdown(w)

	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Spider", "`" + snap.Spider + "`"},
			{"Started", formatTime(snap.Started)},
			{"Finished", formatTime(snap.Finished)},
			{"Duration", snap.Elapsed().Round(time.Millisecond).String()},
			{"Stop Reason", orDash(snap.Reason)},
		},
	})
	md.PlainText("")

	md.H2("Counters")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Count"},
		Rows: [][]string{
			{"Words", formatCount(snap.Words)},
			{"Requests", formatCount(snap.Requests)},
			{"Responses", formatCount(snap.Responses)},
			{"Exceptions", formatCount(snap.Exceptions)},
			{"Retries", formatCount(snap.Retries)},
			{"Duplicate drops", formatCount(snap.DedupDrops)},
			{"Middleware drops", formatCount(snap.MiddlewareDrops)},
			{"Items", formatCount(snap.Items)},
			{"Items dropped", formatCount(snap.ItemsDropped)},
			{"Failures", formatCount(snap.Failures)},
		},
	})
	md.PlainText("")

	writeStatusClasses(md, snap)

	return md.Build()
}

// writeStatusClasses writes the per-status-class table, sorted by class
// label so the output is stable.
func writeStatusClasses(md *markdown.Markdown, snap Snapshot) {
	md.H2("Responses by Status Class")
	md.PlainText("")

	if len(snap.StatusClasses) == 0 {
		md.PlainText("No responses recorded.")
		md.PlainText("")
		return
	}

	labels := make([]string, 0, len(snap.StatusClasses))
	for label := range snap.StatusClasses {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := make([][]string, len(labels))
	for i, label := range labels {
		rows[i] = []string{label, formatCount(snap.StatusClasses[label])}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Class", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
