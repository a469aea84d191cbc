package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PickItem is one selectable row in the quick-pick.
type PickItem struct {
	ID          string
	Description string
}

// pickerKeyMap defines the picker keybindings
type pickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Cancel key.Binding
}

var defaultPickerKeys = pickerKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+k"),
		key.WithHelp("↑/ctrl+k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+j"),
		key.WithHelp("↓/ctrl+j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
}

type pickerModel struct {
	placeholder string
	items       []PickItem
	selected    int
	done        bool
	canceled    bool
	keys        pickerKeyMap
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.selected < len(m.items)-1 {
			m.selected++
		}
	case key.Matches(keyMsg, m.keys.Select):
		m.done = true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Cancel):
		m.canceled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m pickerModel) View() string {
	if m.done || m.canceled {
		return ""
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#89B4FA"))
	selectedStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A6E3A1"))
	normalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#CDD6F4"))
	descStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.placeholder))
	b.WriteString("\n\n")

	for i, item := range m.items {
		cursor := "  "
		style := normalStyle
		if i == m.selected {
			cursor = "❯ "
			style = selectedStyle
		}
		b.WriteString(cursor)
		b.WriteString(style.Render(item.ID))
		if item.Description != "" {
			b.WriteString(descStyle.Render("  " + item.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move · enter select · esc cancel"))
	b.WriteString("\n")

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#6C7086")).
		Padding(0, 1)

	return borderStyle.Render(b.String())
}

// Pick runs an interactive quick-pick and returns the chosen item's ID. The
// second return is false when the user dismisses the picker or it cannot run.
func Pick(placeholder string, items []PickItem) (string, bool) {
	if len(items) == 0 {
		return "", false
	}

	m := pickerModel{
		placeholder: placeholder,
		items:       items,
		keys:        defaultPickerKeys,
	}
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return "", false
	}
	result, ok := final.(pickerModel)
	if !ok || result.canceled || !result.done {
		return "", false
	}
	return result.items[result.selected].ID, true
}

// Confirm presents a binary choice rendered as the two product strings and
// returns true only for an explicit accept.
func Confirm(message, yes, no string) bool {
	picked, ok := Pick(message, []PickItem{{ID: yes}, {ID: no}})
	return ok && picked == yes
}
