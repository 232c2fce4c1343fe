package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"

	"github.com/wippyai/wasm2go/translate"
	"github.com/wippyai/wasm2go/wasm"
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

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type explorerState int

const (
	stateSelectExport explorerState = iota
	stateShowSource
)

type exportInfo struct {
	name    string
	sig     string
	funcIdx uint32
	local   bool // has a body the translator can print
}

type explorerModel struct {
	err      error
	fs       afero.Fs
	cfg      config
	filename string
	module   *wasm.Module
	summary  string
	exports  []exportInfo
	source   viewport.Model
	selected int
	state    explorerState
	ready    bool
}

type moduleLoadedMsg struct {
	err     error
	module  *wasm.Module
	summary string
	exports []exportInfo
}

type sourceMsg struct {
	err    error
	source string
}

func newExplorerModel(fs afero.Fs, filename string, cfg config) *explorerModel {
	return &explorerModel{
		fs:       fs,
		cfg:      cfg,
		filename: filename,
		state:    stateSelectExport,
	}
}

func (m *explorerModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *explorerModel) loadModule() tea.Msg {
	logger := newLogger(false)
	mod, err := load(m.fs, m.filename, m.cfg.skipVerify, logger)
	if err != nil {
		return moduleLoadedMsg{err: err}
	}
	a, err := translate.Analyze(mod)
	if err != nil {
		return moduleLoadedMsg{err: err}
	}

	numImports := uint32(a.NumImportedFuncs)
	var exports []exportInfo
	for _, ex := range a.Exports {
		if ex.Kind != wasm.KindFunc {
			continue
		}
		ft := mod.GetFuncType(ex.Idx)
		exports = append(exports, exportInfo{
			name:    ex.Name,
			sig:     sigString(ft),
			funcIdx: ex.Idx,
			local:   ex.Idx >= numImports,
		})
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].name < exports[j].name })

	return moduleLoadedMsg{module: mod, summary: a.Summary(), exports: exports}
}

func sigString(ft *wasm.FuncType) string {
	if ft == nil {
		return "(?)"
	}
	params := make([]string, len(ft.Params))
	for i, p := range ft.Params {
		params[i] = p.String()
	}
	results := make([]string, len(ft.Results))
	for i, r := range ft.Results {
		results[i] = r.String()
	}
	s := "(" + strings.Join(params, ", ") + ")"
	if len(results) > 0 {
		s += " -> " + strings.Join(results, ", ")
	}
	return s
}

func (m *explorerModel) generateSource() tea.Msg {
	ex := m.exports[m.selected]
	src, err := translate.TranslateFunction(m.module, ex.funcIdx, translate.Options{
		Package: m.cfg.pkgName,
		Struct:  m.cfg.structName,
	})
	if err != nil {
		return sourceMsg{err: err}
	}
	return sourceMsg{source: src}
}

func (m *explorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.source = viewport.New(msg.Width, msg.Height-4)
		m.ready = true

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectExport && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectExport && m.selected < len(m.exports)-1 {
				m.selected++
			}

		case "enter":
			if m.state == stateSelectExport && len(m.exports) > 0 && m.exports[m.selected].local {
				return m, m.generateSource
			}

		case "esc":
			if m.state == stateShowSource {
				m.state = stateSelectExport
			}
		}

	case moduleLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.module = msg.module
		m.summary = msg.summary
		m.exports = msg.exports

	case sourceMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		if m.ready {
			m.source.SetContent(msg.source)
			m.source.GotoTop()
		}
		m.state = stateShowSource
	}

	if m.state == stateShowSource && m.ready {
		var cmd tea.Cmd
		m.source, cmd = m.source.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *explorerModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.module == nil {
		return "Loading module..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("wasm2go explorer"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.summary))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectExport:
		if len(m.exports) == 0 {
			b.WriteString("Module exports no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select an export to see its generated Go:\n\n")
		for i, ex := range m.exports {
			line := funcStyle.Render(ex.name) + " " + typeStyle.Render(ex.sig)
			if !ex.local {
				line += helpStyle.Render("  (imported)")
			}
			cursor := "  "
			if i == m.selected {
				cursor = "> "
				line = selectedStyle.Render(cursor + ex.name + " " + ex.sig)
			} else {
				line = cursor + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("up/down select - enter view source - q quit"))

	case stateShowSource:
		ex := m.exports[m.selected]
		b.WriteString(fmt.Sprintf("Generated method for %s:\n\n", funcStyle.Render(ex.name)))
		if m.ready {
			b.WriteString(m.source.View())
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("up/down scroll - esc back - q quit"))
	}

	return b.String()
}

func runInteractive(fs afero.Fs, filename string, cfg config) error {
	p := tea.NewProgram(newExplorerModel(fs, filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
