package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap lists the console's key bindings.
type KeyMap struct {
	Quit        key.Binding
	NextField   key.Binding
	PrevField   key.Binding
	Blur        key.Binding
	AutoRefresh key.Binding
	Snapshot    key.Binding
	Reconnect   key.Binding
	Bottom      key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next filter"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous filter"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back to logs"),
		),
		AutoRefresh: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "auto-refresh"),
		),
		Snapshot: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "snapshot"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reconnect"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end", "follow"),
		),
	}
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.NextField, k.AutoRefresh, k.Snapshot, k.Reconnect, k.Bottom, k.Quit}
}
