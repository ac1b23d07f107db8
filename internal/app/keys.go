package app

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	SwitchPage key.Binding
	Quit       key.Binding
	QuitLetter key.Binding

	Record    key.Binding
	Discard   key.Binding
	Preview   key.Binding
	Save      key.Binding
	NextField key.Binding
	PrevField key.Binding
}

var defaultKeys = keyMap{
	SwitchPage: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch page"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	QuitLetter: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	Record: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "record/stop"),
	),
	Discard: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "discard"),
	),
	Preview: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("ctrl+p", "preview"),
	),
	Save: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "save"),
	),
	NextField: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next field"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("up", "shift+tab"),
		key.WithHelp("↑", "previous field"),
	),
}

// createHelp adapts the create page bindings to help.KeyMap.
type createHelp struct{ k keyMap }

func (h createHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.Record, h.k.Discard, h.k.Preview, h.k.Save, h.k.SwitchPage, h.k.Quit}
}

func (h createHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{h.k.Record, h.k.Discard, h.k.Preview},
		{h.k.Save, h.k.NextField, h.k.PrevField},
		{h.k.SwitchPage, h.k.Quit},
	}
}
