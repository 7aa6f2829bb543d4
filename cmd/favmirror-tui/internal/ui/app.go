// Package ui provides the terminal user interface for favmirror.
package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/favmirror/cmd/favmirror-tui/internal/client"
	"github.com/iconidentify/favmirror/cmd/favmirror-tui/internal/config"
	"github.com/iconidentify/favmirror/internal/api/handler"
	"github.com/iconidentify/favmirror/internal/domain"
)

// Panel represents a UI panel type.
type Panel int

const (
	PanelDashboard Panel = iota
	PanelPending
	PanelSearch
	PanelHelp
)

// App is the main TUI application.
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	cfg          *config.Config
	client       *client.Client
	currentPanel Panel
	ctx          context.Context
	cancel       context.CancelFunc

	statusMu sync.RWMutex
	ready    *handler.HealthResponse
	pending  []domain.ExternalID

	// UI components
	mainFlex      *tview.Flex
	header        *tview.TextView
	footer        *tview.TextView
	statusBar     *tview.TextView
	dashboardView *tview.Flex
	statsBox      *tview.TextView
	diskBox       *tview.TextView
	pendingView   *tview.Flex
	pendingTable  *tview.Table
	submitInput   *tview.InputField
	searchView    *tview.Flex
	searchInput   *tview.InputField
	searchResults *tview.Table
	suggestions   *tview.TextView
	helpView      *tview.TextView
}

// NewApp creates a new TUI application.
func NewApp(cfg *config.Config) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		cfg:    cfg,
		client: client.NewClient(cfg.ServerURL, cfg.RequestTimeout),
		ctx:    ctx,
		cancel: cancel,
	}

	a.setupUI()
	return a, nil
}

// setupUI initializes all UI components.
func (a *App) setupUI() {
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)
	a.updateHeader()

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]1[white]:Dashboard [yellow]2[white]:Pending [yellow]3[white]:Search [yellow]?[white]:Help [yellow]r[white]:Refresh [yellow]q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	a.statusBar = tview.NewTextView().
		SetDynamicColors(true)
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	a.createDashboardPanel()
	a.createPendingPanel()
	a.createSearchPanel()
	a.createHelpPanel()

	a.pages.AddPage("dashboard", a.dashboardView, true, true)
	a.pages.AddPage("pending", a.pendingView, true, false)
	a.pages.AddPage("search", a.searchView, true, false)
	a.pages.AddPage("help", a.helpView, true, false)

	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 3, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	a.app.SetInputCapture(a.handleGlobalKeys)
	a.app.SetRoot(a.mainFlex, true)
}

// handleGlobalKeys handles global keyboard shortcuts.
func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	// Don't intercept when typing in input fields
	if focus := a.app.GetFocus(); focus == a.submitInput || focus == a.searchInput {
		if event.Key() == tcell.KeyEscape {
			a.app.SetFocus(a.pages)
			return nil
		}
		return event
	}

	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case '1':
			a.switchPanel(PanelDashboard)
			return nil
		case '2':
			a.switchPanel(PanelPending)
			return nil
		case '3':
			a.switchPanel(PanelSearch)
			return nil
		case '?':
			a.switchPanel(PanelHelp)
			return nil
		case 'q', 'Q':
			a.Stop()
			return nil
		case 'r', 'R':
			go a.refreshStatus()
			return nil
		}
	case tcell.KeyF1:
		a.switchPanel(PanelDashboard)
		return nil
	case tcell.KeyF2:
		a.switchPanel(PanelPending)
		return nil
	case tcell.KeyF3:
		a.switchPanel(PanelSearch)
		return nil
	case tcell.KeyEscape:
		a.switchPanel(PanelDashboard)
		return nil
	}

	return event
}

// switchPanel switches to the specified panel.
func (a *App) switchPanel(panel Panel) {
	a.currentPanel = panel

	switch panel {
	case PanelDashboard:
		a.pages.SwitchToPage("dashboard")
	case PanelPending:
		a.pages.SwitchToPage("pending")
		a.app.SetFocus(a.pendingTable)
	case PanelSearch:
		a.pages.SwitchToPage("search")
		a.app.SetFocus(a.searchInput)
	case PanelHelp:
		a.pages.SwitchToPage("help")
	}

	a.updateHeader()
}

// updateHeader updates the header with current panel name.
func (a *App) updateHeader() {
	a.header.SetText(fmt.Sprintf("\n[white::b]favmirror[white] - [yellow]%s[white] | Server: [green]%s",
		panelName(a.currentPanel), a.cfg.ServerURL))
}

func panelName(p Panel) string {
	switch p {
	case PanelDashboard:
		return "Dashboard"
	case PanelPending:
		return "Pending"
	case PanelSearch:
		return "Search"
	case PanelHelp:
		return "Help"
	}
	return ""
}

// updateStatusBar updates the status bar with current status.
func (a *App) updateStatusBar(msg string) {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetText(fmt.Sprintf(" %s | Last refresh: %s", msg, time.Now().Format("15:04:05")))
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.startBackgroundRefresh()
	go a.refreshStatus()

	return a.app.Run()
}

// Stop stops the TUI application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// startBackgroundRefresh starts periodic status refresh.
func (a *App) startBackgroundRefresh() {
	ticker := time.NewTicker(a.cfg.StatusRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.refreshStatus()
		}
	}
}

// refreshStatus fetches readiness and the pending backlog.
func (a *App) refreshStatus() {
	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.RequestTimeout)
	defer cancel()

	ready, err := a.client.Ready(ctx)
	if err != nil && ready == nil {
		a.updateStatusBar(fmt.Sprintf("[red]Error: %v", err))
		return
	}
	pending, perr := a.client.Pending(ctx)

	a.statusMu.Lock()
	a.ready = ready
	if perr == nil {
		a.pending = pending
	}
	a.statusMu.Unlock()

	a.app.QueueUpdateDraw(func() {
		a.updateDashboard()
		a.updatePendingTable()
	})

	switch {
	case err != nil:
		a.updateStatusBar(fmt.Sprintf("[red]Server not ready: %v", err))
	case perr != nil:
		a.updateStatusBar(fmt.Sprintf("[yellow]Pending list unavailable: %v", perr))
	default:
		a.updateStatusBar("[green]Server ready")
	}
}

// snapshot returns the last fetched status.
func (a *App) snapshot() (*handler.HealthResponse, []domain.ExternalID) {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.ready, a.pending
}
