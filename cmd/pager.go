package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
)

// pagerDebounce lets editor write bursts settle before re-rendering.
const pagerDebounce = 100 * time.Millisecond

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	pagerErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	pagerMatchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	pagerLiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))
)

// renderFunc renders the pager content for a terminal width.
type renderFunc func(width int) (string, error)

// fileChangedMsg is sent when a watched file changes.
type fileChangedMsg struct{}

// runPager shows rendered content in an interactive pager. When watch names
// files, they are watched and the content is re-rendered on every change.
func runPager(title string, render renderFunc, watch []string) error {
	m := newPagerModel(title, render)

	if len(watch) > 0 {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer watcher.Close()

		// Watch parent directories so editors that replace files on save
		// still produce events.
		dirs := make(map[string]bool)
		for _, path := range watch {
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", path, err)
			}
			m.targets[abs] = true
			dir := filepath.Dir(abs)
			if dirs[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			dirs[dir] = true
		}
		m.live = true
		m.watcher = watcher
	}

	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := prog.Run()
	return err
}

// pagerModel is the Bubble Tea model for the pager.
type pagerModel struct {
	viewport   viewport.Model
	title      string
	content    string
	ready      bool
	render     renderFunc
	live       bool
	watcher    *fsnotify.Watcher
	targets    map[string]bool
	renderErr  error
	lastUpdate time.Time
	reloads    int

	searching    bool
	searchInput  textinput.Model
	searchQuery  string
	searchLines  []int
	searchIndex  int
	searchFailed bool
}

func newPagerModel(title string, render renderFunc) *pagerModel {
	return &pagerModel{
		title:   title,
		render:  render,
		targets: make(map[string]bool),
	}
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.watchFile()
	}
	return nil
}

// watchFile returns a command that waits for a change to a target file.
func (m *pagerModel) watchFile() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if !m.targets[filepath.Clean(event.Name)] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					time.Sleep(pagerDebounce)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

// rerender runs a fresh render at the current width, keeping the previous
// content when rendering fails.
func (m *pagerModel) rerender() {
	content, err := m.render(m.viewport.Width)
	m.renderErr = err
	if err != nil {
		return
	}
	m.content = content
	m.viewport.SetContent(content)
	if m.searchQuery != "" {
		m.executeSearch()
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	if m.searching {
		if key, ok := msg.(tea.KeyMsg); ok {
			switch key.String() {
			case "enter":
				m.searchQuery = m.searchInput.Value()
				m.searching = false
				m.executeSearch()
				if len(m.searchLines) > 0 {
					m.jumpToMatch(0)
				}
				return m, nil
			case "esc", "ctrl+c":
				m.searching = false
				m.clearSearch()
				return m, nil
			}
		}
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case fileChangedMsg:
		offset := m.viewport.YOffset
		m.rerender()
		m.reloads++
		m.lastUpdate = time.Now()
		m.viewport.SetYOffset(offset)
		if m.watcher != nil {
			cmds = append(cmds, m.watchFile())
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.searchQuery == "" {
				return m, tea.Quit
			}
			m.clearSearch()
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "/":
			m.searching = true
			m.searchInput = textinput.New()
			m.searchInput.Placeholder = "Search..."
			m.searchInput.CharLimit = 100
			m.searchInput.Width = 40
			m.searchInput.SetValue(m.searchQuery)
			m.searchInput.Focus()
			return m, textinput.Blink
		case "n":
			if len(m.searchLines) > 0 {
				m.searchIndex = (m.searchIndex + 1) % len(m.searchLines)
				m.jumpToMatch(m.searchIndex)
			}
		case "N":
			if len(m.searchLines) > 0 {
				m.searchIndex = (m.searchIndex - 1 + len(m.searchLines)) % len(m.searchLines)
				m.jumpToMatch(m.searchIndex)
			}
		}

	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 1, 1
		height := msg.Height - headerHeight - footerHeight
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = headerHeight
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		// Bubble widths depend on the terminal width, so resizing re-renders.
		m.rerender()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *pagerModel) clearSearch() {
	m.searchQuery = ""
	m.searchLines = nil
	m.searchIndex = 0
	m.searchFailed = false
}

// executeSearch finds the content lines matching the search query.
func (m *pagerModel) executeSearch() {
	m.searchLines = nil
	m.searchIndex = 0
	m.searchFailed = false
	if m.searchQuery == "" {
		return
	}

	query := strings.ToLower(m.searchQuery)
	for i, line := range strings.Split(m.content, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			m.searchLines = append(m.searchLines, i)
		}
	}
	m.searchFailed = len(m.searchLines) == 0
}

// jumpToMatch scrolls so the given match sits mid-screen.
func (m *pagerModel) jumpToMatch(index int) {
	if index < 0 || index >= len(m.searchLines) {
		return
	}
	m.viewport.SetYOffset(m.searchLines[index] - m.viewport.Height/2)
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	rule := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerInfoStyle.Render(rule))

	info := fmt.Sprintf(" %d%% ", int(m.viewport.ScrollPercent()*100))

	if m.searching {
		return header + "\n" + m.viewport.View() + "\n" + pagerMatchStyle.Render("/") + m.searchInput.View()
	}

	var help string
	switch {
	case m.renderErr != nil:
		help = " " + pagerErrorStyle.Render("render failed: "+m.renderErr.Error()) + " "
	case m.searchFailed:
		help = fmt.Sprintf(" %s │ /: search ", pagerErrorStyle.Render("Pattern not found"))
	case len(m.searchLines) > 0:
		match := pagerMatchStyle.Render(fmt.Sprintf("[%d/%d]", m.searchIndex+1, len(m.searchLines)))
		help = fmt.Sprintf(" %s │ n/N: next/prev │ /: search │ esc: clear ", match)
	case m.live:
		help = fmt.Sprintf(" %s │ q: quit │ /: search │ g/G: top/bottom ", pagerLiveStyle.Render("● LIVE"))
	default:
		help = " q: quit │ /: search │ n/N: next/prev │ g/G: top/bottom "
	}

	fill := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))
	footer := pagerInfoStyle.Render(help) + pagerInfoStyle.Render(fill) + pagerInfoStyle.Render(info)

	return header + "\n" + m.viewport.View() + "\n" + footer
}
