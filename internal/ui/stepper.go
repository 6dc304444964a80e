package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"rill/internal/vm"
)

type stepperKeyMap struct {
	Step     key.Binding
	Continue key.Binding
	Quit     key.Binding
}

func (k stepperKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Continue, k.Quit}
}

func (k stepperKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Step, k.Continue, k.Quit}}
}

var stepperKeys = stepperKeyMap{
	Step:     key.NewBinding(key.WithKeys(" ", "s"), key.WithHelp("space/s", "step")),
	Continue: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "run to completion")),
	Quit:     key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type stepperModel struct {
	exec   *vm.Execution
	help   help.Model
	width  int
	result vm.Value
	err    *vm.VmError
	done   bool
	quit   bool
}

// NewStepperModel returns a Bubble Tea model that steps an execution one
// instruction at a time.
func NewStepperModel(exec *vm.Execution) tea.Model {
	return &stepperModel{exec: exec, help: help.New(), width: 80}
}

// StepperResult reports how an interactive stepper session ended.
type StepperResult struct {
	Value vm.Value
	Err   *vm.VmError
	Done  bool
	Quit  bool
}

// Result extracts the final state from a finished model returned by
// tea.Program.Run.
func Result(m tea.Model) StepperResult {
	sm, ok := m.(*stepperModel)
	if !ok {
		return StepperResult{}
	}
	return StepperResult{Value: sm.result, Err: sm.err, Done: sm.done, Quit: sm.quit}
}

func (m *stepperModel) Init() tea.Cmd {
	return nil
}

func (m *stepperModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.done {
			return m, tea.Quit
		}
		switch {
		case key.Matches(msg, stepperKeys.Quit):
			m.quit = true
			return m, tea.Quit
		case key.Matches(msg, stepperKeys.Step):
			m.advance()
			return m, nil
		case key.Matches(msg, stepperKeys.Continue):
			value, err := m.exec.Complete()
			m.result, m.err, m.done = value, err, true
			return m, nil
		}
		return m, nil
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.help.Width = msg.Width
		}
		return m, nil
	}
	return m, nil
}

func (m *stepperModel) advance() {
	value, done, err := m.exec.Step()
	if err != nil {
		m.err = err
		m.done = true
		return
	}
	if done {
		m.result = value
		m.done = true
	}
}

func (m *stepperModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	instStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	var b strings.Builder
	if m.done {
		if m.err != nil {
			b.WriteString(errStyle.Render(fmt.Sprintf("error: %s", m.err)))
		} else {
			b.WriteString(okStyle.Render(fmt.Sprintf("done: %s", m.result.DebugString())))
		}
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("press any key to exit"))
		b.WriteString("\n")
		return b.String()
	}

	sp, ok := m.exec.Vm().StopPoint()
	if !ok {
		return dimStyle.Render("execution finished") + "\n"
	}

	header := fmt.Sprintf("%s  ip=%d depth=%d", sp.Fn, sp.IP, sp.Depth)
	b.WriteString(titleStyle.Render(stepTruncate(header, m.width)))
	b.WriteString("\n")
	b.WriteString(instStyle.Render(fmt.Sprintf("  next: %s", sp.Inst)))
	b.WriteString("\n\n")

	var window strings.Builder
	vm.NewInspector(m.exec.Vm(), &window).Window()
	for _, line := range strings.Split(strings.TrimRight(window.String(), "\n"), "\n") {
		b.WriteString(stepTruncate(line, m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(stepperKeys))
	b.WriteString("\n")
	return b.String()
}

func stepTruncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
