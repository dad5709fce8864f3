package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/wippyai/mozjpeg-wasm/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateEdit modelState = iota
	stateCompressing
	stateDone
)

const (
	fieldQuality = iota
	fieldSubsample
	fieldTrellis
	fieldOutput
)

type interactiveModel struct {
	err      error
	job      *job
	rows     chan rowsMsg
	bar      progress.Model
	opts     options
	inputs   []textinput.Model
	written  int64
	elapsed  time.Duration
	done     int
	total    int
	focusIdx int
	state    modelState
}

type loadedMsg struct {
	err error
	job *job
}

type rowsMsg struct {
	done  int
	total int
}

type finishedMsg struct {
	err     error
	written int64
	elapsed time.Duration
}

func newInteractiveModel(o options) *interactiveModel {
	m := &interactiveModel{
		opts:  o,
		bar:   progress.New(progress.WithDefaultGradient()),
		state: stateEdit,
	}
	m.inputs = make([]textinput.Model, 4)
	for i := range m.inputs {
		ti := textinput.New()
		ti.Width = 30
		m.inputs[i] = ti
	}
	m.inputs[fieldQuality].Prompt = "quality:   "
	m.inputs[fieldSubsample].Prompt = "subsample: "
	m.inputs[fieldSubsample].Placeholder = "module default"
	m.inputs[fieldTrellis].Prompt = "trellis:   "
	m.inputs[fieldTrellis].Placeholder = "off"
	m.inputs[fieldOutput].Prompt = "output:    "
	m.inputs[fieldOutput].SetValue(o.outFile)
	m.inputs[fieldQuality].Focus()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return tea.Batch(m.load, textinput.Blink)
}

func (m *interactiveModel) load() tea.Msg {
	j, err := prepare(m.opts)
	return loadedMsg{job: j, err: err}
}

// applyInputs copies the edited fields into the profile.
func (m *interactiveModel) applyInputs() error {
	c := &m.job.profile.Compress

	q, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldQuality].Value()))
	if err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	c.Quality = q
	c.ChromaSubsample = strings.TrimSpace(m.inputs[fieldSubsample].Value())

	c.Trellis = nil
	if s := strings.TrimSpace(m.inputs[fieldTrellis].Value()); s != "" && s != "off" {
		loops, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("trellis loops: %w", err)
		}
		c.Trellis = &config.Trellis{Loops: loops}
	}

	if strings.TrimSpace(m.inputs[fieldOutput].Value()) == "" {
		return fmt.Errorf("output file is required")
	}
	_, err = m.job.profile.Settings()
	return err
}

func (m *interactiveModel) compress() tea.Cmd {
	m.rows = make(chan rowsMsg, 64)
	out := strings.TrimSpace(m.inputs[fieldOutput].Value())
	j := m.job
	rows := m.rows

	run := func() tea.Msg {
		start := time.Now()
		n, err := compress(context.Background(), j, out, nil, func(done, total int) {
			select {
			case rows <- rowsMsg{done: done, total: total}:
			default:
			}
		})
		close(rows)
		return finishedMsg{err: err, written: n, elapsed: time.Since(start)}
	}
	return tea.Batch(run, waitRows(rows))
}

// waitRows delivers the next progress report; it returns nil once the
// session is over.
func waitRows(rows <-chan rowsMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-rows
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateEdit || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "tab", "down":
			if m.state == stateEdit {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "shift+tab", "up":
			if m.state == stateEdit {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + len(m.inputs) - 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
				return m, nil
			}

		case "enter":
			switch m.state {
			case stateEdit:
				if m.job == nil {
					return m, nil
				}
				if err := m.applyInputs(); err != nil {
					m.err = err
					return m, nil
				}
				m.err = nil
				m.done, m.total = 0, m.job.img.Height
				m.state = stateCompressing
				return m, m.compress()

			case stateDone:
				m.state = stateEdit
				m.err = nil
			}

		case "esc":
			if m.state == stateDone {
				m.state = stateEdit
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.job = msg.job
		m.inputs[fieldQuality].SetValue(strconv.Itoa(m.job.profile.Compress.Quality))
		m.inputs[fieldSubsample].SetValue(m.job.profile.Compress.ChromaSubsample)
		if t := m.job.profile.Compress.Trellis; t != nil {
			m.inputs[fieldTrellis].SetValue(strconv.Itoa(t.Loops))
		}
		return m, nil

	case rowsMsg:
		m.done, m.total = msg.done, msg.total
		return m, waitRows(m.rows)

	case finishedMsg:
		m.err = msg.err
		m.written = msg.written
		m.elapsed = msg.elapsed
		m.state = stateDone
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, 60)
		return m, nil
	}

	if m.state == stateEdit {
		var cmd tea.Cmd
		m.inputs[m.focusIdx], cmd = m.inputs[m.focusIdx].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	if m.job == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress ctrl+c to quit.", m.err))
		}
		return "Loading module..."
	}

	var b strings.Builder

	img := m.job.img
	b.WriteString(titleStyle.Render("cjpeg"))
	b.WriteString(" ")
	b.WriteString(m.opts.inFile)
	b.WriteString(labelStyle.Render(fmt.Sprintf("  %dx%d %s, %s",
		img.Width, img.Height, img.ColorSpace, humanize.IBytes(uint64(len(img.Pixels))))))
	b.WriteString("\n\n")

	switch m.state {
	case stateEdit:
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter compress • ctrl+c quit"))

	case stateCompressing:
		pct := 0.0
		if m.total > 0 {
			pct = float64(m.done) / float64(m.total)
		}
		b.WriteString(m.bar.ViewAs(pct))
		b.WriteString(fmt.Sprintf("\nrows %d/%d\n", m.done, m.total))

	case stateDone:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			in := uint64(len(img.Pixels))
			b.WriteString(resultStyle.Render(fmt.Sprintf("%s  %s (%.1f%% of input) in %s",
				strings.TrimSpace(m.inputs[fieldOutput].Value()),
				humanize.IBytes(uint64(m.written)),
				100*float64(m.written)/float64(max(in, 1)),
				m.elapsed.Round(time.Millisecond))))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter adjust settings • q quit"))
	}

	return b.String()
}

func runInteractive(o options) error {
	p := tea.NewProgram(newInteractiveModel(o), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
