package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/pigeonmsg/pigeon/internal/model"
	"github.com/pigeonmsg/pigeon/internal/tui/ui"
)

// ContactsView combines user search, incoming requests and the friend
// list on one page.
type ContactsView struct {
	*tview.Flex
	theme *ui.Theme

	input    *tview.InputField
	results  *tview.Table
	requests *tview.Table

	matches []model.UserMatch
	pending []model.FriendRequest

	onQuery func(term string)
}

// NewContactsView creates the contacts page.
func NewContactsView(theme *ui.Theme) *ContactsView {
	cv := &ContactsView{theme: theme}

	cv.input = tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	cv.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && cv.onQuery != nil {
			cv.onQuery(cv.input.GetText())
		}
	})

	cv.results = newContactsTable(theme, " Results ")
	cv.requests = newContactsTable(theme, " Incoming Requests ")

	cv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(cv.input, 1, 0, true).
		AddItem(cv.results, 0, 2, false).
		AddItem(cv.requests, 0, 1, false)

	return cv
}

func newContactsTable(theme *ui.Theme, title string) *tview.Table {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(title)
	table.SetTitleColor(theme.TitleColor)
	return table
}

// SetOnQuery sets the search submit callback.
func (cv *ContactsView) SetOnQuery(fn func(term string)) { cv.onQuery = fn }

// Input exposes the search field for focus handling.
func (cv *ContactsView) Input() *tview.InputField { return cv.input }

// Results exposes the results table for focus handling.
func (cv *ContactsView) Results() *tview.Table { return cv.results }

// Requests exposes the requests table for focus handling.
func (cv *ContactsView) Requests() *tview.Table { return cv.requests }

// UpdateResults re-renders the search results.
func (cv *ContactsView) UpdateResults(matches []model.UserMatch) {
	cv.matches = matches
	cv.results.Clear()

	for col, h := range []string{" USER", " NAME", " STATUS"} {
		cv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(cv.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(1))
	}

	for i, m := range matches {
		name := m.DisplayName
		if m.IsOnline {
			name = "* " + name
		}
		cv.results.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(m.Username))).SetTextColor(cv.theme.FgColor).SetExpansion(1))
		cv.results.SetCell(i+1, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetTextColor(cv.theme.FgColor).SetExpansion(1))
		cv.results.SetCell(i+1, 2, tview.NewTableCell(" "+annotation(m.Friendship)).SetTextColor(cv.theme.MutedColor).SetExpansion(1))
	}
	cv.results.SetTitle(fmt.Sprintf(" Results (%d) ", len(matches)))
}

// UpdateRequests re-renders the incoming request list.
func (cv *ContactsView) UpdateRequests(reqs []model.FriendRequest) {
	cv.pending = reqs
	cv.requests.Clear()

	for col, h := range []string{" FROM", " RECEIVED"} {
		cv.requests.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(cv.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(1))
	}

	for i, r := range reqs {
		from := r.Requester.DisplayName
		if from == "" {
			from = r.Requester.Username
		}
		cv.requests.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(from))).SetTextColor(cv.theme.FgColor).SetExpansion(1))
		cv.requests.SetCell(i+1, 1, tview.NewTableCell(" "+r.CreatedAt.Format("01/02 15:04")).SetTextColor(cv.theme.MutedColor).SetExpansion(1))
	}
	cv.requests.SetTitle(fmt.Sprintf(" Incoming Requests (%d) ", len(reqs)))
}

// SelectedMatch returns the highlighted search result, or nil.
func (cv *ContactsView) SelectedMatch() *model.UserMatch {
	row, _ := cv.results.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(cv.matches) {
		return nil
	}
	m := cv.matches[idx]
	return &m
}

// SelectedRequest returns the highlighted incoming request, or nil.
func (cv *ContactsView) SelectedRequest() *model.FriendRequest {
	row, _ := cv.requests.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(cv.pending) {
		return nil
	}
	r := cv.pending[idx]
	return &r
}

func annotation(status model.FriendshipStatus) string {
	switch status {
	case model.FriendshipPending:
		return "pending"
	case model.FriendshipAccepted:
		return "friend"
	case model.FriendshipBlocked:
		return "blocked"
	default:
		return "-"
	}
}
