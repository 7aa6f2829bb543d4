package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/favmirror/internal/domain"
)

// createSearchPanel creates the tag search panel.
func (a *App) createSearchPanel() {
	a.searchInput = tview.NewInputField().
		SetLabel(" Tags: ").
		SetFieldWidth(0).
		SetPlaceholder("tag -excluded, Enter to search")
	a.searchInput.SetChangedFunc(func(text string) {
		go a.suggest(lastTerm(text))
	})
	a.searchInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		go a.search(a.searchInput.GetText())
	})

	a.suggestions = tview.NewTextView().
		SetDynamicColors(true)
	a.suggestions.SetBorder(true).SetTitle(" Suggestions ")

	a.searchResults = tview.NewTable().
		SetSelectable(true, false)
	a.searchResults.SetBorder(true).SetTitle(" Results ")

	body := tview.NewFlex().
		AddItem(a.searchResults, 0, 3, false).
		AddItem(a.suggestions, 0, 1, false)

	a.searchView = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.searchInput, 1, 0, true).
		AddItem(body, 0, 1, false)
}

func (a *App) search(term string) {
	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.RequestTimeout)
	defer cancel()

	ids, err := a.client.Search(ctx, term)
	if err != nil {
		a.updateStatusBar(fmt.Sprintf("[red]Search failed: %v", err))
		return
	}

	a.app.QueueUpdateDraw(func() {
		a.searchResults.Clear()
		for i, id := range ids {
			a.searchResults.SetCell(i, 0, tview.NewTableCell(id.String()))
			a.searchResults.SetCell(i, 1, tview.NewTableCell(a.client.ImageURL(id)).
				SetTextColor(tcell.ColorGray).
				SetExpansion(1))
		}
		a.searchResults.SetTitle(fmt.Sprintf(" Results (%d) ", len(ids)))
	})
}

func (a *App) suggest(word string) {
	if word == "" {
		a.app.QueueUpdateDraw(func() { a.suggestions.Clear() })
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, a.cfg.RequestTimeout)
	defer cancel()

	tags, err := a.client.Autocomplete(ctx, word)
	if err != nil {
		return
	}
	text := formatSuggestions(tags)
	a.app.QueueUpdateDraw(func() { a.suggestions.SetText(text) })
}

// lastTerm returns the word being typed, without an exclusion prefix.
func lastTerm(text string) string {
	if text == "" || strings.HasSuffix(text, " ") {
		return ""
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[len(fields)-1], "-")
}

var kindColors = map[domain.TagKind]string{
	domain.TagKindArtist:    "orange",
	domain.TagKindCharacter: "green",
	domain.TagKindCopyright: "purple",
	domain.TagKindMetadata:  "gray",
}

func formatSuggestions(tags []domain.TagUsage) string {
	if len(tags) == 0 {
		return "[dim]No matching tags[white]"
	}
	var b strings.Builder
	for _, t := range tags {
		color := kindColors[t.Kind]
		if color == "" {
			color = "white"
		}
		b.WriteString(fmt.Sprintf("[%s]%s[white] [dim]%d[white]\n", color, tview.Escape(t.Name), t.Uses))
	}
	return b.String()
}
