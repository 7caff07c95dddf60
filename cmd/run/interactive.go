package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	wasmhost "github.com/hostkit/wasm-host"
	"github.com/hostkit/wasm-host/runtime"
	"github.com/hostkit/wasm-host/wasi"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	outputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CCCCCC"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	err      error
	rt       *runtime.Runtime
	wasi     *wasi.Environment
	instance *runtime.Instance
	module   *runtime.Module
	filename string
	result   string
	output   string
	exports  []runtime.Export
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(filename string) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		state:    stateSelectFunc,
	}
}

type loadedMsg struct {
	err     error
	rt      *runtime.Runtime
	env     *wasi.Environment
	mod     *runtime.Module
	exports []runtime.Export
}

type callResultMsg struct {
	err    error
	result string
	output string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	ctx := context.Background()

	rt, err := runtime.New(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}

	mod, err := rt.Load(ctx, m.filename)
	if err != nil {
		rt.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{rt: rt, env: wasi.New(), mod: mod, exports: mod.Exports()}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.instance != nil {
				m.instance.Close(ctx)
			}
			if m.rt != nil {
				m.rt.Close(ctx)
			}
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.exports)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.exports) == 0 {
					break
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.output = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.output = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.exports = msg.exports
		m.rt = msg.rt
		m.wasi = msg.env
		m.module = msg.mod

	case callResultMsg:
		m.result = msg.result
		m.output = msg.output
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	e := m.exports[m.selected]
	m.inputs = make([]textinput.Model, len(e.Params))
	for i, kind := range e.Params {
		ti := textinput.New()
		ti.Placeholder = kind.String()
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	ctx := context.Background()

	if m.instance == nil {
		if m.module == nil {
			return callResultMsg{err: fmt.Errorf("module not loaded")}
		}
		inst, err := m.module.Instantiate(ctx, m.wasi)
		if err != nil {
			return callResultMsg{err: err}
		}
		m.instance = inst
	}

	e := m.exports[m.selected]
	args := make([]wasmhost.Value, len(m.inputs))
	for i, input := range m.inputs {
		v, err := wasmhost.ParseValue(e.Params[i], strings.TrimSpace(input.Value()))
		if err != nil {
			return callResultMsg{err: err}
		}
		args[i] = v
	}

	captured := len(m.wasi.Stdout())
	results, err := m.instance.Invoke(ctx, e.Name, args)
	if err != nil {
		return callResultMsg{err: err, output: string(m.wasi.Stdout()[captured:])}
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.String()
	}
	result := strings.Join(parts, ", ")
	if result == "" {
		result = "(no results)"
	}

	return callResultMsg{result: result, output: string(m.wasi.Stdout()[captured:])}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.module == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("wasm-host"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.exports) == 0 {
			b.WriteString("Module exports no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, e := range m.exports {
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				b.WriteString(selectedStyle.Render(cursor + formatExportStyled(e)))
			} else {
				b.WriteString(cursor + formatExportStyled(e))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		e := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(e.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(e.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		e := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(e.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		if m.output != "" {
			b.WriteString("\n\n--- stdout ---\n")
			b.WriteString(outputStyle.Render(m.output))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatExportStyled(e runtime.Export) string {
	params := make([]string, len(e.Params))
	for i, k := range e.Params {
		params[i] = typeStyle.Render(k.String())
	}
	result := ""
	if len(e.Results) > 0 {
		results := make([]string, len(e.Results))
		for i, k := range e.Results {
			results[i] = typeStyle.Render(k.String())
		}
		result = " -> " + strings.Join(results, ", ")
	}
	return funcStyle.Render(e.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newInteractiveModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
