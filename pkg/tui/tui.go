package tui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unowned-ai/trove/pkg/items"
	"github.com/unowned-ai/trove/pkg/keeper"
	"github.com/unowned-ai/trove/pkg/live"
	"github.com/unowned-ai/trove/pkg/view"
)

// Steps of the new item form
const (
	fieldTitle = iota
	fieldDescription
	fieldCategory
	fieldDate
	fieldTime
	fieldPhoto
	fieldCount
)

var fieldLabels = [fieldCount]string{"Title", "Description", "Category", "Date", "Time", "Photo"}

type model struct {
	keeper *keeper.Keeper
	live   *liveInbox
	view   *view.Model
	result view.Result
	loaded bool

	photoStatus map[string]bool

	columnFocus int // 0 = categories, 1 = items
	width       int // Current terminal width (for layout)
	height      int // Current terminal height

	notice      string
	noticeErr   bool
	noticeUntil time.Time

	dbFilename string
	photosDir  string

	quitting bool

	tabCursor  int // Index of selected tab
	itemCursor int // Index of selected item

	filtering   bool
	filterInput textinput.Model

	creating      bool
	creatingStep  int
	creatingError string
	inputs        [fieldCount]textinput.Model

	deleting         bool
	deleteConfirmIdx int // 0 = "Yes" selected, 1 = "No"

	// Animation state
	marqueeOffset int
	marqueeTimer  int
}

// Initialize TUI model
func initModel(k *keeper.Keeper, sort view.SortKey) model {
	filter := textinput.New()
	filter.Placeholder = "Filter by title or description"
	filter.Prompt = "/ "
	filter.CharLimit = 256

	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		inputs[i] = textinput.New()
	}
	inputs[fieldTitle].Placeholder = "What is it?"
	inputs[fieldTitle].CharLimit = 256
	inputs[fieldDescription].Placeholder = "Details (optional)"
	inputs[fieldDescription].CharLimit = 1024
	inputs[fieldCategory].Placeholder = items.DefaultCategory
	inputs[fieldCategory].CharLimit = 64
	inputs[fieldDate].Placeholder = keeper.DateLayout
	inputs[fieldDate].CharLimit = len(keeper.DateLayout)
	inputs[fieldTime].Placeholder = keeper.TimeLayout
	inputs[fieldTime].CharLimit = len(keeper.TimeLayout)
	inputs[fieldPhoto].Placeholder = "Path to a JPEG (optional)"

	vm := view.NewModel(view.Options{Sort: sort})

	m := model{
		keeper:      k,
		live:        &liveInbox{},
		view:        vm,
		result:      vm.Result(),
		photoStatus: map[string]bool{},
		filterInput: filter,
		inputs:      inputs,
	}
	if k != nil {
		m.dbFilename = filepath.Base(k.Items().Path())
		m.photosDir = k.Photos().Dir()
	}
	return m
}

func tick() tea.Cmd {
	return tea.Tick(tickDuration, func(t time.Time) tea.Msg {
		return t
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

// Processes events like window resize, errors, live snapshots, and key presses
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dispatchMsg:
		// The subscription hands its callback to the UI loop; running it
		// fills the inbox if the snapshot is still current.
		msg()
		var cmd tea.Cmd
		if m.live.fresh {
			m.live.fresh = false
			m.applySnapshot(m.live.items)
			cmd = checkPhotos(m.keeper, m.live.items)
		}
		if m.live.err != nil {
			m.setNotice("Reload failed: "+m.live.err.Error(), true)
			m.live.err = nil
		}
		return m, cmd

	case photoStatusMsg:
		for ref, ok := range msg {
			m.photoStatus[ref] = ok
		}
		return m, nil

	case itemSavedMsg:
		m.setNotice(fmt.Sprintf("Saved %q", msg.item.Title), false)
		return m, nil

	case itemDeletedMsg:
		m.setNotice("Item deleted", false)
		return m, nil

	case error:
		m.setNotice(msg.Error(), true)
		return m, nil

	case tea.KeyMsg:
		switch {
		case m.creating:
			return m.updateCreating(msg)
		case m.deleting:
			return m.updateDeleting(msg)
		case m.filtering:
			return m.updateFiltering(msg)
		}
		return m.updateRoot(msg)

	case time.Time:
		// Update marquee animation every x ticks (adjust for speed)
		m.marqueeTimer++
		if m.marqueeTimer >= 10 {
			m.marqueeTimer = 0
			m.marqueeOffset++
		}
		if m.notice != "" && msg.After(m.noticeUntil) {
			m.notice = ""
		}
		return m, tick()
	}

	return m, nil
}

// Root Navigation Mode
func (m model) updateRoot(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		// Exit alt screen before quitting so the goodbye message displays
		return m, tea.Sequence(tea.ExitAltScreen, tea.Quit)

	case "up", "k":
		if m.columnFocus == 0 && m.tabCursor > 0 {
			m.selectTab(m.tabCursor - 1)
		} else if m.columnFocus == 1 && m.itemCursor > 0 {
			m.itemCursor--
		}

	case "down", "j":
		if m.columnFocus == 0 && m.tabCursor < len(m.result.Tabs)-1 {
			m.selectTab(m.tabCursor + 1)
		} else if m.columnFocus == 1 && m.itemCursor < len(m.result.Items)-1 {
			m.itemCursor++
		}

	case "tab":
		if len(m.result.Tabs) > 0 {
			m.selectTab((m.tabCursor + 1) % len(m.result.Tabs))
		}

	case "shift+tab":
		if n := len(m.result.Tabs); n > 0 {
			m.selectTab((m.tabCursor + n - 1) % n)
		}

	case "right", "l":
		if m.columnFocus == 0 && len(m.result.Items) > 0 {
			m.columnFocus = 1
		}

	case "left", "h":
		m.columnFocus = 0

	case "s":
		m.result = m.view.SetSort(m.view.Options().Sort.Next())
		m.clampItemCursor()
		m.setNotice("Sorted by "+m.view.Options().Sort.String(), false)

	case "/":
		m.filtering = true
		m.filterInput.SetValue(m.view.Options().Filter)
		m.filterInput.CursorEnd()
		cmd := m.filterInput.Focus()
		return m, cmd

	case "n":
		m.openCreateForm(time.Now())
		cmd := m.inputs[fieldTitle].Focus()
		return m, cmd

	case "d":
		if m.columnFocus == 1 && len(m.result.Items) > 0 {
			m.deleteConfirmIdx = 1
			m.deleting = true
		}
	}
	return m, nil
}

// Filter text applies on every keystroke; esc drops it, enter keeps it
func (m model) updateFiltering(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEsc:
		m.filtering = false
		m.filterInput.Blur()
		m.filterInput.Reset()
		m.result = m.view.SetFilter("")
		m.clampItemCursor()
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if m.filterInput.Value() != m.view.Options().Filter {
		m.result = m.view.SetFilter(m.filterInput.Value())
		m.clampItemCursor()
	}
	return m, cmd
}

// Creating New Item Mode
func (m model) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeCreateForm()
		return m, nil

	case tea.KeyShiftTab, tea.KeyUp:
		var cmd tea.Cmd
		if m.creatingStep > 0 {
			cmd = m.focusField(m.creatingStep - 1)
		}
		return m, cmd

	case tea.KeyEnter, tea.KeyTab, tea.KeyDown:
		if m.creatingStep < fieldPhoto {
			cmd := m.focusField(m.creatingStep + 1)
			return m, cmd
		}
		if msg.Type != tea.KeyEnter {
			return m, nil
		}

		draft, err := m.draft()
		if err != nil {
			m.creatingError = err.Error()
			return m, nil
		}
		m.closeCreateForm()
		return m, createItem(m.keeper, draft)
	}

	var cmd tea.Cmd
	m.inputs[m.creatingStep], cmd = m.inputs[m.creatingStep].Update(msg)
	return m, cmd
}

// Deleting Item Mode
func (m model) updateDeleting(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.deleteConfirmIdx = 0

	case "down", "j":
		m.deleteConfirmIdx = 1

	case "enter":
		m.deleting = false
		if m.deleteConfirmIdx == 0 && m.itemCursor < len(m.result.Items) {
			return m, deleteItem(m.keeper, m.result.Items[m.itemCursor].ID)
		}

	case "esc":
		m.deleting = false
	}
	return m, nil
}

func (m *model) applySnapshot(snapshot []items.Item) {
	var selected items.Item
	if m.itemCursor < len(m.result.Items) {
		selected = m.result.Items[m.itemCursor]
	}

	m.result = m.view.SetSnapshot(snapshot)
	m.loaded = true
	m.syncTabCursor()

	// Keep the same item selected when it is still visible
	m.itemCursor = 0
	for i, item := range m.result.Items {
		if item.ID == selected.ID {
			m.itemCursor = i
			break
		}
	}
	if len(m.result.Items) == 0 {
		m.columnFocus = 0
	}
}

func (m *model) selectTab(i int) {
	m.result = m.view.SetTab(m.result.Tabs[i].Label)
	m.syncTabCursor()
	m.itemCursor = 0
}

func (m *model) syncTabCursor() {
	m.tabCursor = 0
	for i, tab := range m.result.Tabs {
		if tab.Label == m.result.Tab {
			m.tabCursor = i
			return
		}
	}
}

func (m *model) clampItemCursor() {
	if m.itemCursor >= len(m.result.Items) {
		m.itemCursor = max(len(m.result.Items)-1, 0)
	}
	if len(m.result.Items) == 0 {
		m.columnFocus = 0
	}
}

func (m *model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.noticeUntil = time.Now().Add(noticeTTL)
}

func (m *model) openCreateForm(now time.Time) {
	for i := range m.inputs {
		m.inputs[i].Reset()
		m.inputs[i].Blur()
	}
	m.inputs[fieldDate].SetValue(now.Format(keeper.DateLayout))
	m.inputs[fieldTime].SetValue(now.Format(keeper.TimeLayout))
	// New items land in the open tab
	if !view.IsAll(m.result.Tab) {
		m.inputs[fieldCategory].SetValue(m.result.Tab)
	}
	m.creatingStep = fieldTitle
	m.creatingError = ""
	m.creating = true
}

func (m *model) closeCreateForm() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
	m.creating = false
	m.creatingStep = 0
	m.creatingError = ""
}

func (m *model) focusField(step int) tea.Cmd {
	m.inputs[m.creatingStep].Blur()
	m.creatingStep = step
	return m.inputs[step].Focus()
}

// Build a validated draft out of the form fields
func (m model) draft() (keeper.Draft, error) {
	ts, err := keeper.ParseDateTime(
		strings.TrimSpace(m.inputs[fieldDate].Value()),
		strings.TrimSpace(m.inputs[fieldTime].Value()),
		time.Local,
	)
	if err != nil {
		return keeper.Draft{}, err
	}

	d := keeper.Draft{
		Title:       m.inputs[fieldTitle].Value(),
		Description: m.inputs[fieldDescription].Value(),
		Category:    m.inputs[fieldCategory].Value(),
		Timestamp:   ts,
		PhotoSource: strings.TrimSpace(m.inputs[fieldPhoto].Value()),
	}
	if err := items.New(d.Title, d.Description, d.Category, d.Timestamp).Validate(); err != nil {
		return keeper.Draft{}, err
	}
	return d, nil
}

// Assembles the UI string for each frame
func (m model) View() string {
	if m.quitting {
		return "Closing the trove... Everything is saved.\n"
	}

	titleBar := titleStyle.Width(m.width).Render("Trove - personal item tracker")

	leftWidth, middleWidth, rightWidth := m.columnWidths()
	for i := range m.inputs {
		m.inputs[i].Width = rightWidth - bordersAndPaddingWidth - len(fieldLabels[i]) - 2
	}
	m.filterInput.Width = middleWidth - bordersAndPaddingWidth - 2

	quarterHeight := (m.height - bordersAndPaddingWidth) / 4
	panelHeightPadding := 3

	// Left column: category tabs and info
	tabsPanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, true, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(0, 2).
		Width(leftWidth).Height(quarterHeight * 3).
		Render(m.viewTabs(leftWidth))

	infoPanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(1, 2).
		Width(leftWidth).Height(quarterHeight).
		Render(m.viewInfo())

	leftPanel := lipgloss.JoinVertical(lipgloss.Left, tabsPanel, infoPanel)

	middlePanel := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(lipgloss.Color(colorGray)).
		Padding(0, 2).
		Width(middleWidth).Height(m.height - panelHeightPadding).
		Render(m.viewItems(middleWidth))

	rightPanel := lipgloss.NewStyle().Padding(0, 2).
		Width(rightWidth).Height(m.height - panelHeightPadding).
		Render(m.viewDetail(rightWidth))

	columns := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, middlePanel, rightPanel)

	footerText := "\n↑/↓ navigate • tab switch category • / filter • s sort • n new • d delete • q quit"
	if m.notice != "" {
		style := labelStyle
		if m.noticeErr {
			style = errorStyle
		}
		footerText = "\n" + style.Render(m.notice)
	}
	footerBar := footerStyle.Width(m.width).Render(footerText)

	return titleBar + "\n\n" + columns + footerBar
}

func (m model) viewTabs(width int) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Width(width - bordersAndPaddingWidth).Render("  Categories"))
	b.WriteString("\n\n")

	if !m.loaded {
		b.WriteString("  Loading...\n")
		return b.String()
	}
	for i, tab := range m.result.Tabs {
		selected := i == m.tabCursor
		label := tab.Label + " (" + strconv.Itoa(tab.Count) + ")"
		availableWidth := width - 2 - bordersAndPaddingWidth - 1

		style := inactiveStyle
		if selected {
			style = selectedStyle
		}
		label = lipgloss.NewStyle().MaxWidth(availableWidth).
			Render(m.fitText(label, availableWidth, selected))
		b.WriteString(pointer(selected && m.columnFocus == 0) + style.Render(label) + "\n")
	}
	return b.String()
}

func (m model) viewInfo() string {
	var databaseStatus int
	if m.dbFilename != "" {
		databaseStatus = 1
	}
	return fmt.Sprintf("Database file: %v\nPhotos: %v\nSort: %v\n",
		TextStatusColorize(m.dbFilename, databaseStatus),
		TextStatusColorize(m.photosDir, databaseStatus),
		TextStatusColorize(m.view.Options().Sort.String(), 0))
}

func (m model) viewItems(width int) string {
	var b strings.Builder
	b.WriteString(subtitleStyle.Width(width - bordersAndPaddingWidth).Render("  Items"))
	b.WriteString("\n")
	if m.filtering {
		b.WriteString(m.filterInput.View())
	} else if f := m.view.Options().Filter; f != "" {
		b.WriteString(labelStyle.Render("/ " + f))
	}
	b.WriteString("\n\n")

	if !m.loaded {
		return b.String()
	}
	if len(m.result.Items) == 0 {
		if m.view.Options().Filter != "" {
			b.WriteString("  Nothing matches the filter.\n")
		} else {
			b.WriteString("  No items yet. Press 'n' to add one.\n")
		}
		return b.String()
	}

	for i, item := range m.result.Items {
		selected := i == m.itemCursor && m.columnFocus == 1
		availableWidth := width - 2 - bordersAndPaddingWidth - 1

		style := inactiveStyle
		if selected {
			style = selectedStyle
		}
		title := item.Title
		if title == "" {
			title = "(untitled)"
		}
		title = lipgloss.NewStyle().MaxWidth(availableWidth).
			Render(m.fitText(title, availableWidth, selected))
		b.WriteString(pointer(selected) + style.Render(title) + "\n")
	}
	return b.String()
}

func (m model) viewDetail(width int) string {
	var b strings.Builder

	subtitle := "Item"
	if m.creating {
		subtitle = "New Item"
	}
	if m.deleting {
		subtitle = "Delete Item"
	}
	b.WriteString(subtitleStyle.Width(width - bordersAndPaddingWidth).Render(subtitle))
	b.WriteString("\n\n")

	switch {
	case m.creating:
		for i, input := range m.inputs {
			b.WriteString(labelStyle.Render(fieldLabels[i]+": ") + input.View() + "\n")
		}
		b.WriteString("\n(enter for next field and to save, esc to cancel)")
		if m.creatingError != "" {
			b.WriteString("\n\n" + errorStyle.Render(m.creatingError) + "\n")
		}

	case m.deleting && m.itemCursor < len(m.result.Items):
		b.WriteString("Title: " + errorStyle.Render(m.result.Items[m.itemCursor].Title) + "\n\n")
		yesOpt, noOpt := "Yes", "No"
		if m.deleteConfirmIdx == 0 {
			yesOpt = dangerSelectedStyle.Render(" >" + yesOpt)
			noOpt = inactiveStyle.Render("  " + noOpt)
		} else {
			yesOpt = inactiveStyle.Render("  " + yesOpt)
			noOpt = selectedStyle.Render(" >" + noOpt)
		}
		b.WriteString(fmt.Sprintf("%s\n%s\n\n", yesOpt, noOpt))
		b.WriteString("(enter to confirm, esc to cancel, up/down to switch)")

	case m.columnFocus == 1 && m.itemCursor < len(m.result.Items):
		item := m.result.Items[m.itemCursor]
		b.WriteString(lipgloss.NewStyle().Bold(true).
			Render(labelStyle.Render("Title: ")+inactiveStyle.Render(item.Title)) + "\n\n")
		b.WriteString(labelStyle.Render("Category: ") + categoryStyle.Render(item.Category) + "\n")
		b.WriteString(labelStyle.Render("When: ") +
			inactiveStyle.Render(item.Timestamp.Local().Format(view.TimestampLayout)) + "\n")
		b.WriteString(labelStyle.Render("Photo: ") + m.photoLine(item) + "\n\n")
		b.WriteString(inactiveStyle.Render(item.Description))

	default:
		b.WriteString("Select an item to view details.")
	}
	return b.String()
}

func (m model) photoLine(item items.Item) string {
	if !item.HasPhoto() {
		return TextStatusColorize("-", 0)
	}
	ok, checked := m.photoStatus[item.PhotoRef]
	switch {
	case !checked:
		return TextStatusColorize(item.PhotoRef, 0)
	case ok:
		return TextStatusColorize(item.PhotoRef, 1)
	default:
		return TextStatusColorize(item.PhotoRef+" (missing)", 2)
	}
}

// ShowTUI runs the interactive browser over k until the user quits.
// Snapshots are delivered through the program's message loop, so the view
// only ever changes on the UI goroutine.
func ShowTUI(k *keeper.Keeper, sort view.SortKey) error {
	m := initModel(k, sort)
	p := tea.NewProgram(m, tea.WithAltScreen())

	sub, err := k.SubscribeAll(m.live.deliver,
		live.WithName("tui"),
		live.WithDispatcher(func(fn func()) { p.Send(dispatchMsg(fn)) }),
		live.WithErrorHandler(m.live.fail),
	)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	_, err = p.Run()
	return err
}
