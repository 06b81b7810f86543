package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"kahaani/agent"
	"kahaani/client"
	"kahaani/history"
	"kahaani/pipeline"
)

var (
	accent = lipgloss.Color("#F5A623")
	muted  = lipgloss.Color("#626262")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(accent).
			Padding(0, 1)

	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)

	faintStyle = lipgloss.NewStyle().Foreground(muted)

	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444")).
			Padding(1).
			MarginBottom(1)
)

var (
	modes     = []agent.ContentMode{agent.ModeInform, agent.ModeImagine, agent.ModeBoth}
	languages = []agent.Language{agent.LanguageEnglish, agent.LanguageHindi, agent.LanguageHinglish}
)

// loadingStages are shown on a timer while the request is in flight; the
// endpoint reports nothing until it is done.
var loadingStages = []struct {
	text     string
	duration time.Duration
}{
	{"Scanning trending topics across India", 4 * time.Second},
	{"Discovered topics from Google News & Google Trends", 3 * time.Second},
	{"AI Research Agent selecting top 3 stories", 5 * time.Second},
	{"Writing scripts", 15 * time.Second},
	{"Scoring quality & calculating costs", 3 * time.Second},
}

type screen int

const (
	screenPick screen = iota
	screenLoading
	screenResult
	screenHistory
	screenError
)

type model struct {
	client *client.Client
	store  *history.Store

	spinner  spinner.Model
	viewport viewport.Model
	ready    bool
	width    int

	screen  screen
	modeIdx int
	langIdx int

	run    int
	stage  int
	cancel context.CancelFunc

	result  *pipeline.Response
	entries []history.Entry
	cursor  int
	errMsg  string
}

type generatedMsg struct {
	run  int
	resp *pipeline.Response
	err  error
}

type stageMsg struct {
	run   int
	stage int
}

func initialModel(c *client.Client, store *history.Store) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accent)
	return model{
		client:  c,
		store:   store,
		spinner: s,
		modeIdx: 2,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) mode() agent.ContentMode { return modes[m.modeIdx] }

func (m model) language() agent.Language { return languages[m.langIdx] }

func (m model) startGeneration() (model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	m.run++
	m.stage = 0
	m.cancel = cancel
	m.screen = screenLoading
	m.errMsg = ""

	run, c := m.run, m.client
	mode, lang := string(m.mode()), string(m.language())
	generate := func() tea.Msg {
		resp, err := c.Generate(ctx, mode, lang)
		return generatedMsg{run: run, resp: resp, err: err}
	}
	return m, tea.Batch(generate, m.nextStage(), m.spinner.Tick)
}

func (m model) nextStage() tea.Cmd {
	if m.stage >= len(loadingStages)-1 {
		return nil
	}
	run, next := m.run, m.stage+1
	return tea.Tick(loadingStages[m.stage].duration, func(time.Time) tea.Msg {
		return stageMsg{run: run, stage: next}
	})
}

func (m model) showResult(r *pipeline.Response) model {
	m.result = r
	m.screen = screenResult
	if m.ready {
		m.viewport.SetContent(m.renderResult())
		m.viewport.GotoTop()
	}
	return m
}

func (m model) renderResult() string {
	if m.result == nil {
		return ""
	}
	out, err := renderMarkdown(responseMarkdown(m.result), m.width)
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	return out
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.YPosition = 1
			m.ready = true
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		if m.result != nil {
			m.viewport.SetContent(m.renderResult())
		}

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.screen == screenLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case stageMsg:
		if msg.run == m.run && m.screen == screenLoading {
			m.stage = msg.stage
			cmds = append(cmds, m.nextStage())
		}

	case generatedMsg:
		if msg.run != m.run {
			break
		}
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.screen = screenPick
		case msg.err != nil:
			m.errMsg = client.FriendlyMessage(msg.err)
			m.screen = screenError
		default:
			m = m.showResult(msg.resp)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch m.screen {
	case screenPick:
		switch key {
		case "q":
			return m, tea.Quit
		case "left", "shift+tab":
			m.modeIdx = (m.modeIdx + len(modes) - 1) % len(modes)
		case "right", "tab", "m":
			m.modeIdx = (m.modeIdx + 1) % len(modes)
		case "up":
			m.langIdx = (m.langIdx + len(languages) - 1) % len(languages)
		case "down", "l":
			m.langIdx = (m.langIdx + 1) % len(languages)
		case "enter":
			return m.startGeneration()
		case "h":
			return m.openHistory(), nil
		}

	case screenLoading:
		if key == "esc" && m.cancel != nil {
			m.cancel()
		}

	case screenResult:
		switch key {
		case "q":
			return m, tea.Quit
		case "n", "esc":
			m.screen = screenPick
		case "h":
			return m.openHistory(), nil
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case screenHistory:
		switch key {
		case "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.entries) {
				return m.showResult(m.entries[m.cursor].Result()), nil
			}
		case "x":
			m.store.Clear()
			m.entries = nil
			m.cursor = 0
		case "esc", "h":
			m.screen = screenPick
			if m.result != nil {
				m.screen = screenResult
			}
		}

	case screenError:
		switch key {
		case "q":
			return m, tea.Quit
		case "enter", "r":
			return m.startGeneration()
		case "esc":
			m.screen = screenPick
		}
	}
	return m, nil
}

func (m model) openHistory() model {
	m.entries = m.store.List()
	m.cursor = 0
	m.screen = screenHistory
	return m
}

func (m model) View() string {
	header := titleStyle.Render("🎙  " + pipeline.ProductName)

	switch m.screen {
	case screenLoading:
		return header + "\n" + m.loadingView()
	case screenResult:
		if !m.ready {
			return "\nInitializing...\n"
		}
		footer := faintStyle.Render("↑/↓: scroll • n: new • h: history • q: quit")
		return header + "\n" + m.viewport.View() + "\n" + footer
	case screenHistory:
		return header + "\n" + m.historyView()
	case screenError:
		return header + "\n" + errorStyle.Render(m.errMsg) + "\n" + faintStyle.Render("enter: try again • esc: back • q: quit")
	default:
		return header + "\n" + m.pickView()
	}
}

func (m model) pickView() string {
	var b strings.Builder

	b.WriteString("What should we make today?\n\n")
	for i, mode := range modes {
		style := optionStyle
		if i == m.modeIdx {
			style = selectedStyle
		}
		b.WriteString(style.Render(modeLabel(mode)) + " ")
	}
	b.WriteString("\n\n")
	for i, lang := range languages {
		style := optionStyle
		if i == m.langIdx {
			style = selectedStyle
		}
		b.WriteString(style.Render(languageLabel(lang)) + " ")
	}
	b.WriteString("\n\n")
	b.WriteString(faintStyle.Render("←/→: mode • ↑/↓: language • enter: generate • h: history • q: quit"))
	return b.String()
}

func (m model) loadingView() string {
	var b strings.Builder
	for i, stage := range loadingStages {
		text := stage.text
		if i == 3 {
			text = "Writing scripts in " + languageLabel(m.language())
		}
		switch {
		case i < m.stage:
			b.WriteString(lipgloss.NewStyle().Foreground(accent).Render("✓ " + text))
		case i == m.stage:
			b.WriteString(m.spinner.View() + " " + text)
		default:
			b.WriteString(faintStyle.Render("· " + text))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + faintStyle.Render("esc: cancel • this usually takes 20 to 40 seconds"))
	return b.String()
}

func (m model) historyView() string {
	if len(m.entries) == 0 {
		return "No scripts yet.\n\n" + faintStyle.Render("esc: back • q: quit")
	}

	var b strings.Builder
	for i, e := range m.entries {
		titles := make([]string, 0, len(e.Scripts))
		for _, s := range e.Scripts {
			if s.Title != "" {
				titles = append(titles, s.Title)
			}
		}
		line := fmt.Sprintf("%s  %-7s %-8s %s",
			e.Timestamp.Local().Format("02 Jan 15:04"),
			modeLabel(e.Mode),
			languageLabel(e.Language),
			strings.Join(titles, " / "),
		)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(optionStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n" + faintStyle.Render("↑/↓: select • enter: open • x: clear history • esc: back"))
	return b.String()
}
