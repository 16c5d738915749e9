package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"

	"github.com/kingrea/semester-planner/internal/session"
)

type keyMap struct {
	Submit      key.Binding
	Retry       key.Binding
	Reset       key.Binding
	Dismiss     key.Binding
	Save        key.Binding
	NewDocument key.Binding
	Leave       key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		Retry:       key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "resubmit")),
		Reset:       key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "start over")),
		Dismiss:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss error")),
		Save:        key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "save plan")),
		NewDocument: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new syllabus")),
		Leave:       key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// phaseKeys narrows the help line to the bindings that do something now.
type phaseKeys []key.Binding

func (k phaseKeys) ShortHelp() []key.Binding  { return k }
func (k phaseKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k} }

var _ help.KeyMap = phaseKeys(nil)

func (k keyMap) forPhase(st session.State) help.KeyMap {
	var out phaseKeys
	switch st.Phase {
	case session.PhaseIntake:
		out = append(out, k.Submit)
	case session.PhaseInterview:
		out = append(out, k.Submit)
		if st.CanRetry() {
			out = append(out, k.Retry)
		}
		out = append(out, k.Reset)
	case session.PhaseResult:
		out = append(out, k.Save, k.NewDocument, k.Leave)
	}
	if st.Err != nil {
		out = append(out, k.Dismiss)
	}
	return append(out, k.Quit)
}
