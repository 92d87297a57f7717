package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"filepanel/internal/filter"
	"filepanel/internal/panel"
	"filepanel/internal/service"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Width(11)
	messageStyle = lipgloss.NewStyle().
			Margin(1, 2)
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Margin(1, 2)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

var labels = map[string]string{
	filter.FieldSearch:    "Search",
	filter.FieldFileType:  "File type",
	filter.FieldMinSize:   "Min KB",
	filter.FieldMaxSize:   "Max KB",
	filter.FieldStartDate: "From date",
	filter.FieldEndDate:   "To date",
}

type keyMap struct {
	Apply    key.Binding
	Refresh  key.Binding
	Delete   key.Binding
	Download key.Binding
	Focus    key.Binding
	Quit     key.Binding
}

var keys = keyMap{
	Apply:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
	Refresh:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh")),
	Delete:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "delete")),
	Download: key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "download")),
	Focus:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	Quit:     key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
}

type fetchDoneMsg struct{ err error }

type deleteDoneMsg struct {
	id  string
	err error
}

type downloadDoneMsg struct {
	id    string
	bytes int64
	err   error
}

type model struct {
	ctx     context.Context
	panel   *panel.Panel
	sink    service.Sink
	inputs  []textinput.Model
	table   table.Model
	spinner spinner.Model
	focus   int
	rowIDs  []string
	status  string
}

func newModel(ctx context.Context, p *panel.Panel, sink service.Sink) model {
	inputs := make([]textinput.Model, len(filter.Fields))
	for i, field := range filter.Fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = field
		ti.Width = 24
		inputs[i] = ti
	}
	inputs[0].Focus()

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 36},
			{Title: "Type", Width: 18},
			{Title: "Size (KB)", Width: 12},
			{Title: "Uploaded", Width: 20},
			{Title: "", Width: 14},
		}),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(styles)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		ctx:     ctx,
		panel:   p,
		sink:    sink,
		inputs:  inputs,
		table:   t,
		spinner: sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.apply(false))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case fetchDoneMsg:
		if msg.err != nil && !isSuperseded(msg.err) {
			m.status = "fetch failed"
		} else if msg.err == nil {
			m.status = ""
		}

	case deleteDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("delete %s failed: %v", msg.id, msg.err)
		} else {
			m.status = fmt.Sprintf("deleted %s", msg.id)
		}

	case downloadDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("download %s failed: %v", msg.id, msg.err)
		} else {
			m.status = fmt.Sprintf("downloaded %s (%s KB)", msg.id, panel.FormatKB(msg.bytes))
		}

	case spinner.TickMsg:
		// Ticks double as the redraw for per-row pending state, which the
		// mutation commands set from their own goroutines.
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.syncTable()
		return m, cmd

	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width - 2)
		m.table.SetHeight(max(msg.Height-len(m.inputs)-8, 3))
	}

	m.syncTable()
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Apply):
		return m, m.apply(false)
	case key.Matches(msg, keys.Refresh):
		return m, m.apply(true)
	case key.Matches(msg, keys.Focus):
		m.cycleFocus()
		return m, nil
	case key.Matches(msg, keys.Delete):
		if id, ok := m.selected(); ok {
			return m, m.remove(id)
		}
		return m, nil
	case key.Matches(msg, keys.Download):
		if id, ok := m.selected(); ok {
			return m, m.download(id)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus < len(m.inputs) {
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		if a, err := filter.ActionFor(filter.Fields[m.focus], m.inputs[m.focus].Value()); err == nil {
			m.panel.Dispatch(a)
		}
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	m.syncTable()
	return m, cmd
}

func (m *model) cycleFocus() {
	if m.focus < len(m.inputs) {
		m.inputs[m.focus].Blur()
	} else {
		m.table.Blur()
	}
	m.focus = (m.focus + 1) % (len(m.inputs) + 1)
	if m.focus < len(m.inputs) {
		m.inputs[m.focus].Focus()
	} else {
		m.table.Focus()
	}
}

func (m model) apply(force bool) tea.Cmd {
	p, ctx := m.panel, m.ctx
	return func() tea.Msg {
		if force {
			return fetchDoneMsg{err: p.Refresh(ctx)}
		}
		return fetchDoneMsg{err: p.Apply(ctx)}
	}
}

func (m model) remove(id string) tea.Cmd {
	p, ctx := m.panel, m.ctx
	return func() tea.Msg {
		return deleteDoneMsg{id: id, err: p.Delete(ctx, id)}
	}
}

func (m model) download(id string) tea.Cmd {
	p, ctx, sink := m.panel, m.ctx, m.sink
	return func() tea.Msg {
		n, err := p.Download(ctx, id, sink)
		return downloadDoneMsg{id: id, bytes: n, err: err}
	}
}

func (m model) selected() (string, bool) {
	i := m.table.Cursor()
	if m.focus != len(m.inputs) || i < 0 || i >= len(m.rowIDs) {
		return "", false
	}
	return m.rowIDs[i], true
}

func (m *model) syncTable() {
	v := m.panel.View()
	rows := make([]table.Row, 0, len(v.Rows))
	m.rowIDs = m.rowIDs[:0]
	for _, r := range v.Rows {
		state := ""
		switch {
		case r.Deleting:
			state = "deleting..."
		case r.Downloading:
			state = "downloading..."
		}
		rows = append(rows, table.Row{r.Filename, r.FileType, r.SizeKB, r.UploadedAt.Local().Format("2006-01-02 15:04"), state})
		m.rowIDs = append(m.rowIDs, r.ID)
	}
	m.table.SetRows(rows)
}

func (m model) View() string {
	var b strings.Builder

	for i, field := range filter.Fields {
		b.WriteString(labelStyle.Render(labels[field]))
		b.WriteString(" ")
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}

	v := m.panel.View()
	switch v.Kind {
	case panel.KindLoading:
		b.WriteString(messageStyle.Render(m.spinner.View() + " " + v.Message))
	case panel.KindError:
		b.WriteString(errorStyle.Render(v.Message))
	case panel.KindEmpty:
		b.WriteString(messageStyle.Render(v.Message))
	default:
		b.WriteString("\n")
		b.WriteString(m.table.View())
	}
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(statusStyle.Render(helpLine()))

	return baseStyle.Render(b.String())
}

func helpLine() string {
	bindings := []key.Binding{keys.Apply, keys.Refresh, keys.Delete, keys.Download, keys.Focus, keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

func isSuperseded(err error) bool {
	return errors.Is(err, panel.ErrSuperseded)
}
