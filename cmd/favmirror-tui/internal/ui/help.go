package ui

import (
	"github.com/rivo/tview"
)

// createHelpPanel creates the help panel.
func (a *App) createHelpPanel() {
	a.helpView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.helpView.SetBorder(true).SetTitle(" Help ")

	helpText := `[yellow::b]favmirror TUI[white]

Monitors a running favmirror server and drives its intake and search API.

[yellow::b]GLOBAL NAVIGATION[white]
[cyan]1[white] or [cyan]F1[white]     Dashboard      - Readiness, counters and disk usage
[cyan]2[white] or [cyan]F2[white]     Pending        - Posts still waiting for a download
[cyan]3[white] or [cyan]F3[white]     Search         - Tag search with suggestions
[cyan]?[white]            Help           - This help screen
[cyan]r[white]            Refresh        - Refresh now
[cyan]q[white]            Quit           - Exit the application
[cyan]Escape[white]       Dashboard      - Leave an input field or return to dashboard

[yellow::b]PENDING PANEL[white]
[cyan]a[white]            Focus the submit field. Enter space or comma separated
             post ids and press Enter. Only unknown ids are queued.

[yellow::b]SEARCH PANEL[white]
Bare words must all be present; words prefixed with [cyan]-[white] must be absent.
Suggestions follow the word under the cursor, most used first.

[yellow::b]ENVIRONMENT[white]
[cyan]FAVMIRROR_URL[white]               Server base URL (default http://localhost:34343)
[cyan]FAVMIRROR_STATUS_REFRESH[white]    Refresh interval (default 5s)
[cyan]FAVMIRROR_REQUEST_TIMEOUT[white]   Per-request timeout (default 10s)
`
	a.helpView.SetText(helpText)
}
