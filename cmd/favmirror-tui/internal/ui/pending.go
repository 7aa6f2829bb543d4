package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/favmirror/internal/domain"
)

// maxPendingRows caps the pending table.
const maxPendingRows = 500

// createPendingPanel creates the backlog table and the submit field.
func (a *App) createPendingPanel() {
	a.pendingTable = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.pendingTable.SetBorder(true).SetTitle(" Pending - Press 'a' to submit ids ")
	a.pendingTable.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorDarkCyan))
	a.pendingTable.SetCell(0, 0, tview.NewTableCell("POST").
		SetTextColor(tcell.ColorYellow).
		SetSelectable(false).
		SetExpansion(1))
	a.pendingTable.SetCell(0, 1, tview.NewTableCell("URL").
		SetTextColor(tcell.ColorYellow).
		SetSelectable(false).
		SetExpansion(3))

	a.pendingTable.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune && (event.Rune() == 'a' || event.Rune() == 'A') {
			a.app.SetFocus(a.submitInput)
			return nil
		}
		return event
	})

	a.submitInput = tview.NewInputField().
		SetLabel(" Submit ids: ").
		SetFieldWidth(0).
		SetPlaceholder("space or comma separated, Enter to send")
	a.submitInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := a.submitInput.GetText()
		a.submitInput.SetText("")
		a.app.SetFocus(a.pendingTable)
		go a.submit(text)
	})

	a.pendingView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.pendingTable, 0, 1, true).
		AddItem(a.submitInput, 1, 0, false)
}

// updatePendingTable redraws the backlog.
func (a *App) updatePendingTable() {
	_, pending := a.snapshot()

	for row := a.pendingTable.GetRowCount() - 1; row > 0; row-- {
		a.pendingTable.RemoveRow(row)
	}

	for i, id := range pending {
		if i == maxPendingRows {
			a.pendingTable.SetCell(i+1, 0, tview.NewTableCell(fmt.Sprintf("... %d more", len(pending)-maxPendingRows)).
				SetTextColor(tcell.ColorGray).
				SetSelectable(false))
			break
		}
		a.pendingTable.SetCell(i+1, 0, tview.NewTableCell(id.String()).SetExpansion(1))
		a.pendingTable.SetCell(i+1, 1, tview.NewTableCell(a.client.ImageURL(id)).
			SetTextColor(tcell.ColorGray).
			SetExpansion(3))
	}
	a.pendingTable.SetTitle(fmt.Sprintf(" Pending (%d) - Press 'a' to submit ids ", len(pending)))
}

func (a *App) submit(text string) {
	ids, err := parseIDs(text)
	if err != nil {
		a.updateStatusBar(fmt.Sprintf("[red]%v", err))
		return
	}
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.RequestTimeout)
	defer cancel()

	inserted, err := a.client.Submit(ctx, ids)
	if err != nil {
		a.updateStatusBar(fmt.Sprintf("[red]Submit failed: %v", err))
		return
	}
	a.updateStatusBar(fmt.Sprintf("[green]Submitted %d id(s), %d new", len(ids), len(inserted)))
	a.refreshStatus()
}

// parseIDs splits text on whitespace and commas into post ids.
func parseIDs(text string) ([]domain.ExternalID, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	ids := make([]domain.ExternalID, 0, len(fields))
	for _, f := range fields {
		id, err := domain.ParseExternalID(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
