// Command cli is a terminal front end for listingwriter.
//
// Usage:
//
//	export GOOGLE_API_KEY="your-api-key"   # or put it in .env, or type it when asked
//	go run ./cmd/cli
//
// Keys:
//
//	tab / shift+tab - Move between fields
//	enter           - Next field, or start writing from the last field
//	n               - Start a new post once the current one is done
//	ctrl+c          - Quit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nstogner/listingwriter/pkg/config"
	"github.com/nstogner/listingwriter/pkg/credential"
	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/post"
	"github.com/nstogner/listingwriter/pkg/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1) // Red
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	messageStyle = lipgloss.NewStyle().PaddingLeft(2)
)

type state int

const (
	stateForm state = iota
	stateRunning
	stateDone
)

const (
	fieldPrice = iota
	fieldLocation
	fieldFeatures
	fieldImages
	fieldCount
)

type eventMsg post.Event
type eventsClosedMsg struct{}

type model struct {
	ctx  context.Context
	sess *session.Session

	state  state
	focus  int
	width  int
	height int
	err    error

	// UI Components
	inputs   []textinput.Model
	spinner  spinner.Model
	progress progress.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	// Running job
	events   <-chan post.Event
	note     string
	warning  string
	fraction float64
	done     []domain.Section
	post     *domain.Post
}

func initialModel(ctx context.Context, sess *session.Session) model {
	placeholders := []string{
		"e.g. sale 500M / jeonse 300M",
		"e.g. Suseong-gu Lotte Castle",
		"e.g. south facing, fully renovated, good schools",
		"photo paths in blog order, comma separated",
	}
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.Prompt = "┃ "
		ti.Width = 70
		inputs[i] = ti
	}
	inputs[fieldPrice].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)

	// Use "light" style to avoid terminal queries that leak into input
	r, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle("light"),
		glamour.WithWordWrap(80),
	)

	return model{
		ctx:      ctx,
		sess:     sess,
		state:    stateForm,
		inputs:   inputs,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		viewport: vp,
		renderer: r,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4 // Header + Footer
		if m.viewport.Height < 0 {
			m.viewport.Height = 0
		}
		m.progress.Width = msg.Width - 4
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}

		// Recreate renderer with new width
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithStandardStyle("light"),
			glamour.WithWordWrap(m.width-4),
		)
		if m.post != nil {
			m.viewport.SetContent(m.renderPost(*m.post))
		}

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyTab, tea.KeyDown:
			if m.state == stateForm {
				return m.focusField((m.focus + 1) % fieldCount)
			}
		case tea.KeyShiftTab, tea.KeyUp:
			if m.state == stateForm {
				return m.focusField((m.focus + fieldCount - 1) % fieldCount)
			}
		case tea.KeyEnter:
			if m.state == stateForm {
				if m.focus < fieldCount-1 {
					return m.focusField(m.focus + 1)
				}
				return m.start()
			}
		default:
			if m.state == stateDone && msg.String() == "n" {
				return m.reset()
			}
			if m.state == stateDone && msg.String() == "q" {
				return m, tea.Quit
			}
		}

	case eventMsg:
		m = m.applyEvent(post.Event(msg))
		cmds = append(cmds, waitForEvent(m.events))

	case eventsClosedMsg:
		m.events = nil

	case spinner.TickMsg:
		if m.state == stateRunning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		cmds = append(cmds, cmd)
	}

	switch m.state {
	case stateForm:
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		cmds = append(cmds, cmd)
	case stateDone:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) focusField(i int) (model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m, m.inputs[m.focus].Focus()
}

// Actions

func (m model) start() (model, tea.Cmd) {
	paths := splitPaths(m.inputs[fieldImages].Value())
	if len(paths) == 0 {
		m.err = fmt.Errorf("add at least one photo path")
		return m, nil
	}
	m.err = nil

	listing := domain.Listing{
		Price:    m.inputs[fieldPrice].Value(),
		Location: m.inputs[fieldLocation].Value(),
		Features: m.inputs[fieldFeatures].Value(),
	}
	images := loadImages(paths)

	events := make(chan post.Event, 16)
	go func() {
		defer close(events)
		m.sess.Write(m.ctx, listing, images, func(e post.Event) {
			events <- e
		})
	}()

	m.state = stateRunning
	m.events = events
	m.note = "Starting…"
	m.warning = ""
	m.fraction = 0
	m.done = nil
	m.post = nil
	return m, tea.Batch(m.spinner.Tick, m.progress.SetPercent(0), waitForEvent(events))
}

func (m model) reset() (model, tea.Cmd) {
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.state = stateForm
	m.post = nil
	m.done = nil
	return m.focusField(fieldPrice)
}

func (m model) applyEvent(e post.Event) model {
	switch e.Type {
	case post.EventStageStarted:
		m.warning = ""
		if e.Stage == domain.StageImage {
			m.note = fmt.Sprintf("📸 Analysing photo %d of %d…", e.Index, e.Total)
		} else {
			m.note = fmt.Sprintf("Writing the %s…", e.Stage)
		}
	case post.EventRetry:
		m.warning = fmt.Sprintf("⚠️ Busy, waiting %s before trying again (attempt %d/%d)", e.Wait, e.Attempt, e.MaxAttempts)
	case post.EventSectionDone:
		m.done = append(m.done, *e.Section)
	case post.EventProgress:
		m.fraction = e.Fraction
	case post.EventDone:
		m.state = stateDone
		m.post = e.Post
		m.viewport.SetContent(m.renderPost(*e.Post))
		m.viewport.GotoTop()
	}
	return m
}

func (m model) renderPost(p domain.Post) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Blog post (%s)\n\n", p.Model)
	writeSection(&sb, "[1] Titles and greeting", p.Intro)
	for _, s := range p.Images {
		writeSection(&sb, fmt.Sprintf("[2] Photo %d: %s", s.Index, s.ImageName), s)
	}
	writeSection(&sb, "[3] Closing and hashtags", p.Outro)

	raw := sb.String()
	if m.renderer == nil {
		return raw
	}
	rendered, err := m.renderer.Render(raw)
	if err != nil {
		return raw // Fallback
	}
	return rendered
}

func writeSection(sb *strings.Builder, title string, s domain.Section) {
	fmt.Fprintf(sb, "## %s\n\n", title)
	if !s.OK() {
		fmt.Fprintf(sb, "> ❌ Failed: %s\n\n", s.Error)
		return
	}
	sb.WriteString(s.Text)
	sb.WriteString("\n\n")
}

func (m model) View() string {
	var errorView string
	if m.err != nil {
		errorView = errorStyle.Width(m.width).Render(fmt.Sprintf("\nError: %v", m.err))
	}

	modelLine := okStyle.Render("✅ Connected. Model in use: " + m.sess.Resolution.Model)
	if !m.sess.Resolution.Confirmed {
		modelLine += warnStyle.Render(" (fallback, not confirmed available)")
	}
	header := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Real-estate blog writer"), modelLine)

	switch m.state {
	case stateForm:
		labels := []string{"💰 Price", "📍 Location / complex", "✨ Features", "📷 Photos"}
		var fields []string
		for i, in := range m.inputs {
			fields = append(fields, labelStyle.Render(labels[i]), in.View(), "")
		}
		form := lipgloss.JoinVertical(lipgloss.Left, fields...)
		footer := subtleStyle.Render("Tab to move, Enter on the last field to start, Ctrl+C to quit.")
		return lipgloss.JoinVertical(lipgloss.Left, header, "", form, footer, errorView)

	case stateRunning:
		var lines []string
		lines = append(lines, m.spinner.View()+" "+m.note)
		if m.warning != "" {
			lines = append(lines, warnStyle.Render(m.warning))
		}
		lines = append(lines, "", m.progress.View(), "")
		for _, s := range m.done {
			lines = append(lines, messageStyle.Render(sectionSummary(s)))
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, "", lipgloss.JoinVertical(lipgloss.Left, lines...), errorView)
	}

	footer := subtleStyle.Render("↑/↓ to scroll, n for a new post, q to quit.")
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), footer)
}

func sectionSummary(s domain.Section) string {
	name := string(s.Stage)
	if s.Stage == domain.StageImage {
		name = fmt.Sprintf("photo %d", s.Index)
	}
	if !s.OK() {
		return errorStyle.Render(fmt.Sprintf("✗ %s: %s", name, s.Error))
	}
	return okStyle.Render("✓ " + name)
}

func waitForEvent(ch <-chan post.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

func splitPaths(s string) []string {
	var paths []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// loadImages reads every path. A file that cannot be read becomes an empty
// image so only its own section fails.
func loadImages(paths []string) []domain.Image {
	images := make([]domain.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("Failed to read image", "path", p, "error", err)
			images = append(images, domain.Image{Name: filepath.Base(p)})
			continue
		}
		images = append(images, domain.NewImage(filepath.Base(p), data))
	}
	return images
}

func main() {
	configPath := flag.String("config", "listingwriter.yaml", "path to the YAML config file")
	logPath := flag.String("log", "listingwriter.log", "log file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f, err := os.OpenFile(*logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer f.Close()

	logLevel := config.ParseLevel(os.Getenv("LOG_LEVEL"))
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
	slog.Info("Logging initialized", "level", logLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	apiKey, err := credential.Get(cfg.EnvFile, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	sess, err := session.Open(ctx, cfg, apiKey)
	if err != nil {
		slog.Error("Key setup failed", "error", err)
		fmt.Println("Key setup failed:", err)
		os.Exit(1)
	}
	defer sess.Close()

	p := tea.NewProgram(initialModel(ctx, sess), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
