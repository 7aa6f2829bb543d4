package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/iconidentify/favmirror/internal/api/handler"
)

// createDashboardPanel creates the main dashboard panel.
func (a *App) createDashboardPanel() {
	a.statsBox = tview.NewTextView().
		SetDynamicColors(true)
	a.statsBox.SetBorder(true).SetTitle(" Mirror ")

	a.diskBox = tview.NewTextView().
		SetDynamicColors(true)
	a.diskBox.SetBorder(true).SetTitle(" Storage ")

	a.dashboardView = tview.NewFlex().
		AddItem(a.statsBox, 0, 1, false).
		AddItem(a.diskBox, 0, 1, false)
}

// updateDashboard updates the dashboard with current status.
func (a *App) updateDashboard() {
	ready, _ := a.snapshot()
	a.statsBox.SetText(formatStats(ready))
	a.diskBox.SetText(formatDisk(ready))
}

func formatStats(r *handler.HealthResponse) string {
	if r == nil {
		return "[yellow]No data yet[white]"
	}

	var b strings.Builder
	if r.Status == "ok" {
		b.WriteString("[green]Ready: Yes[white]\n\n")
	} else {
		b.WriteString("[red]Ready: No[white]\n")
		if r.Error != "" {
			b.WriteString(fmt.Sprintf("[red]%s[white]\n", r.Error))
		}
		b.WriteString("\n")
	}

	if q := r.Queue; q != nil {
		b.WriteString(fmt.Sprintf("[white::b]Posts:[white]      %d\n", q.Posts))
		b.WriteString(fmt.Sprintf("[white::b]Downloaded:[white] %d\n", q.Downloads))

		color := "green"
		if q.Pending > 0 {
			color = "yellow"
		}
		b.WriteString(fmt.Sprintf("[white::b]Pending:[white]    [%s]%d[white]\n", color, q.Pending))
		b.WriteString(fmt.Sprintf("[white::b]Queued:[white]     %d\n", q.Queued))

		// Pending but not queued means posts wait for the next restart.
		if stalled := q.Pending - int64(q.Queued); stalled > 0 && q.Queued == 0 {
			b.WriteString(fmt.Sprintf("\n[yellow]! %d pending post(s) are not queued[white]\n", stalled))
		}
	}
	return b.String()
}

func formatDisk(r *handler.HealthResponse) string {
	if r == nil || r.Disk == nil {
		return "[dim]Disk usage unavailable[white]"
	}
	d := r.Disk

	var b strings.Builder
	b.WriteString(fmt.Sprintf("[white::b]Path:[white] %s\n", d.Path))
	b.WriteString(fmt.Sprintf("[white::b]Free:[white] %s\n", d.Free))
	if d.Total > 0 {
		used := float64(d.Total-d.FreeBytes) / float64(d.Total) * 100
		color := "green"
		switch {
		case used >= 95:
			color = "red"
		case used >= 80:
			color = "yellow"
		}
		b.WriteString(fmt.Sprintf("[white::b]Used:[white] [%s]%.1f%%[white]\n", color, used))
	}
	return b.String()
}
