package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keyboard shortcuts
type KeyMap struct {
	// Navigation
	Up      key.Binding
	Down    key.Binding
	NextTab key.Binding
	PrevTab key.Binding
	Queue   key.Binding
	Signals key.Binding
	Traces  key.Binding
	Stats   key.Binding

	// Review actions
	Approve key.Binding
	Flag    key.Binding
	Reject  key.Binding

	// Filters
	NextStatus key.Binding
	PrevStatus key.Binding
	Search     key.Binding
	ClearUser  key.Binding
	Window     key.Binding
	Open       key.Binding

	// General
	Refresh   key.Binding
	Reconnect key.Binding
	Help      key.Binding
	Quit      key.Binding
	Confirm   key.Binding
	Cancel    key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev tab"),
		),
		Queue: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "queue"),
		),
		Signals: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "signals"),
		),
		Traces: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "traces"),
		),
		Stats: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "overview"),
		),

		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "approve"),
		),
		Flag: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "flag"),
		),
		Reject: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reject"),
		),

		NextStatus: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "next status"),
		),
		PrevStatus: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "prev status"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "find user"),
		),
		ClearUser: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "all users"),
		),
		Window: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "30/180 days"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "user signals"),
		),

		Refresh: key.NewBinding(
			key.WithKeys("R", "ctrl+r"),
			key.WithHelp("R", "refresh"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "reconnect live"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y/enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "n"),
			key.WithHelp("esc/n", "cancel"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Queue, k.Signals, k.Traces, k.Stats, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextTab, k.PrevTab},
		{k.Approve, k.Flag, k.Reject, k.Open},
		{k.NextStatus, k.PrevStatus, k.Search, k.ClearUser, k.Window},
		{k.Refresh, k.Reconnect, k.Help, k.Quit},
	}
}

// tabKeys are the hints shown in the footer for a tab.
func (k KeyMap) tabKeys(tab TabIndex) []key.Binding {
	switch tab {
	case TabQueue:
		return []key.Binding{k.Approve, k.Flag, k.Reject, k.NextStatus, k.Search, k.Open}
	case TabSignals:
		return []key.Binding{k.Window, k.Search, k.Refresh}
	case TabTraces:
		return []key.Binding{k.Search, k.Refresh}
	default:
		return []key.Binding{k.Refresh}
	}
}
