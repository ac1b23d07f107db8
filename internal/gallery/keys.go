package gallery

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the gallery key bindings.
type KeyMap struct {
	Previous   key.Binding
	Next       key.Binding
	Play       key.Binding
	Fullscreen key.Binding
	Exit       key.Binding
	GoTo       key.Binding
}

// DefaultKeyMap provides the default gallery bindings.
var DefaultKeyMap = KeyMap{
	Previous: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "previous"),
	),
	Next: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next"),
	),
	Play: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "play"),
	),
	Fullscreen: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "fullscreen"),
	),
	Exit: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "exit fullscreen"),
	),
	GoTo: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("1-9", "jump"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Previous, k.Next, k.Play, k.Fullscreen}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Previous, k.Next, k.GoTo},
		{k.Play, k.Fullscreen, k.Exit},
	}
}
