// Package earlyinit must be imported before github.com/charmbracelet/bubbletea
// in cmd/stylecopilot/main.go. Pre-setting lipgloss's dark-background flag
// here keeps bubbletea's package init from sending an OSC 11 terminal colour
// query; on some terminals (notably WSL2) the unanswered reply lands in the
// PTY buffer and shows up as garbage input in the picker.
package earlyinit

import "github.com/charmbracelet/lipgloss"

func init() {
	lipgloss.SetHasDarkBackground(true)
}
