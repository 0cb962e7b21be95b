package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/esm-bundler/errors"
	"github.com/wippyai/esm-bundler/graph"
	"github.com/wippyai/esm-bundler/watch"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	chunkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD787"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type watchModel struct {
	cfg config
	b   *builder

	spin      spinner.Model
	filter    textinput.Model
	filtering bool

	building    bool
	dirty       bool
	builds      int
	lastChanged []string

	last     *buildSummary
	buildErr error
	watchErr error
}

type buildSummary struct {
	duration time.Duration
	modules  int
	chunks   []chunkSummary
	cycles   [][]string
	warnings []errors.Warning
}

type chunkSummary struct {
	label   string
	dynamic bool
	modules int
}

type buildDoneMsg struct {
	summary *buildSummary
	err     error
}

type filesChangedMsg struct {
	paths []string
}

type watchFailedMsg struct {
	err error
}

func newWatchModel(cfg config, b *builder) *watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle

	ti := textinput.New()
	ti.Placeholder = "filter warnings"
	ti.Prompt = "/ "
	ti.Width = 32

	return &watchModel{
		cfg:      cfg,
		b:        b,
		spin:     sp,
		filter:   ti,
		building: true,
	}
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.runBuild())
}

// runBuild executes one build off the update loop. Builds never overlap: the
// building flag gates dispatch, so the builder's snapshot handoff is safe.
func (m *watchModel) runBuild() tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		g, res, err := m.b.build(context.Background())
		if err != nil {
			return buildDoneMsg{err: err}
		}
		sum := &buildSummary{
			duration: time.Since(start),
			modules:  len(g.ModuleIDs()),
			cycles:   res.Cycles,
			warnings: res.Warnings,
		}
		for _, c := range res.Chunks {
			sum.chunks = append(sum.chunks, summarizeChunk(m.cfg.Root, c))
		}
		if m.cfg.Out != "" && m.cfg.Out != "-" {
			man, merr := buildManifest(g, res)
			if merr == nil {
				merr = writeManifest(man, m.cfg.Out)
			}
			if merr != nil {
				return buildDoneMsg{summary: sum, err: merr}
			}
		}
		return buildDoneMsg{summary: sum}
	}
}

func summarizeChunk(root string, c *graph.Chunk) chunkSummary {
	cs := chunkSummary{modules: len(c.Modules), dynamic: len(c.Entries) == 0}
	switch {
	case c.Alias != "":
		cs.label = c.Alias
	case len(c.Entries) > 0:
		var names []string
		for _, e := range c.Entries {
			names = append(names, shortID(root, e.ID))
		}
		cs.label = strings.Join(names, ", ")
	case len(c.DynamicEntries) > 0:
		var names []string
		for _, e := range c.DynamicEntries {
			names = append(names, shortID(root, e.ID))
		}
		cs.label = strings.Join(names, ", ")
	default:
		cs.label = "shared"
	}
	return cs
}

// shortID renders a module id relative to the project root when it lives
// under it.
func shortID(root, id string) string {
	rel, err := filepath.Rel(root, id)
	if err != nil || strings.HasPrefix(rel, "..") {
		return id
	}
	return rel
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.filtering {
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "b":
			if !m.building {
				m.building = true
				return m, m.runBuild()
			}
		case "/":
			m.filtering = true
			m.filter.Focus()
			return m, textinput.Blink
		}

	case filesChangedMsg:
		m.lastChanged = msg.paths
		if m.building {
			m.dirty = true
			return m, nil
		}
		m.building = true
		return m, m.runBuild()

	case buildDoneMsg:
		m.building = false
		m.builds++
		m.buildErr = msg.err
		if msg.summary != nil {
			m.last = msg.summary
		}
		if m.dirty {
			m.dirty = false
			m.building = true
			return m, m.runBuild()
		}

	case watchFailedMsg:
		m.watchErr = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("esm bundler"))
	b.WriteString(" ")
	b.WriteString(dimStyle.Render(m.cfg.Root))
	b.WriteString("\n\n")

	switch {
	case m.building:
		b.WriteString(m.spin.View())
		b.WriteString(" building...\n")
		if len(m.lastChanged) > 0 {
			b.WriteString(dimStyle.Render("  changed: " + strings.Join(m.lastChanged, ", ")))
			b.WriteString("\n")
		}
	case m.buildErr != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("build failed: %v", m.buildErr)))
		b.WriteString("\n")
	case m.last != nil:
		b.WriteString(okStyle.Render(fmt.Sprintf("build #%d ok", m.builds)))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d modules in %s",
			m.last.modules, m.last.duration.Round(time.Millisecond))))
		b.WriteString("\n\n")
		m.renderChunks(&b)
		m.renderCycles(&b)
		m.renderWarnings(&b)
	}

	if m.watchErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("watcher stopped: %v", m.watchErr)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.filtering {
		b.WriteString(m.filter.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter apply • esc close"))
	} else {
		b.WriteString(helpStyle.Render("b rebuild • / filter warnings • q quit"))
	}
	return b.String()
}

func (m *watchModel) renderChunks(b *strings.Builder) {
	for _, cs := range m.last.chunks {
		marker := "●"
		if cs.dynamic {
			marker = "○"
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			marker,
			chunkStyle.Render(cs.label),
			dimStyle.Render(fmt.Sprintf("(%d modules)", cs.modules))))
	}
}

func (m *watchModel) renderCycles(b *strings.Builder) {
	if len(m.last.cycles) == 0 {
		return
	}
	b.WriteString("\n")
	for _, cycle := range m.last.cycles {
		var names []string
		for _, id := range cycle {
			names = append(names, shortID(m.cfg.Root, id))
		}
		b.WriteString(warnStyle.Render("  cycle: " + strings.Join(names, " -> ")))
		b.WriteString("\n")
	}
}

func (m *watchModel) renderWarnings(b *strings.Builder) {
	if len(m.last.warnings) == 0 {
		return
	}
	query := strings.ToLower(m.filter.Value())
	b.WriteString("\n")
	shown := 0
	for _, w := range m.last.warnings {
		line := fmt.Sprintf("%s: %s", w.Code, w.Message)
		if query != "" && !strings.Contains(strings.ToLower(line), query) {
			continue
		}
		b.WriteString(warnStyle.Render("  warn " + line))
		b.WriteString("\n")
		shown++
	}
	if shown == 0 && query != "" {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  no warnings match %q", query)))
		b.WriteString("\n")
	}
}

func runInteractive(ctx context.Context, cfg config) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode needs a terminal; use -watch for plain output")
	}

	b, err := newBuilder(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close(ctx)

	m := newWatchModel(cfg, b)
	p := tea.NewProgram(m, tea.WithAltScreen())

	w, err := watch.New(watch.Config{
		Root:     cfg.Root,
		Patterns: cfg.WatchPatterns,
		Ignore:   watchIgnores(cfg),
		Debounce: cfg.WatchDebounce,
		OnRebuild: func(ctx context.Context, changed []string) error {
			p.Send(filesChangedMsg{paths: changed})
			return nil
		},
		Logger: zap.NewNop(),
	})
	if err != nil {
		return err
	}

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := w.Run(wctx); err != nil {
			p.Send(watchFailedMsg{err: err})
		}
	}()

	_, err = p.Run()
	return err
}
