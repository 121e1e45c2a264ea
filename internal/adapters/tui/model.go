// Package tui is a terminal chat over the complaint query service.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kirillkom/complaint-analyst/internal/core/domain"
	"github.com/kirillkom/complaint-analyst/internal/core/ports"
)

const (
	defaultQueryTimeout = 2 * time.Minute
	excerptRunes        = 300
)

type answerMsg struct {
	question string
	answer   *domain.Answer
	err      error
}

// Model is the Bubble Tea model. A nil service renders a not-ready banner instead of the chat.
type Model struct {
	service ports.ComplaintQueryService
	loadErr error
	timeout time.Duration

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	product  int
	busy     bool
	ready    bool
	status   string
	question string
	answer   *domain.Answer
}

type Options struct {
	LoadErr      error
	QueryTimeout time.Duration
}

func New(service ports.ComplaintQueryService, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about customer complaints and press Enter"
	ti.Focus()
	ti.CharLimit = 1000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	timeout := opts.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	status := "Tab switches product. Ctrl+L clears. Ctrl+C quits."
	if service == nil || opts.LoadErr != nil {
		status = "System not ready."
	}
	return Model{
		service:  service,
		loadErr:  opts.LoadErr,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   status,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := bodyStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 3 + ih + bh
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.viewport.SetContent(m.renderBody())
		return m, nil

	case answerMsg:
		m.busy = false
		m.question = msg.question
		if msg.err != nil {
			m.answer = nil
			m.status = "Error: " + msg.err.Error()
			if domain.IsKind(msg.err, domain.ErrSystemNotReady) {
				m.status = "System not ready: " + msg.err.Error()
			}
		} else {
			m.answer = msg.answer
			m.status = fmt.Sprintf("%d sources, synthesis %s", len(msg.answer.SourceDocuments), msg.answer.SynthesisStatus)
		}
		m.viewport.SetContent(m.renderBody())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlL:
			m.input.Reset()
			m.answer = nil
			m.question = ""
			m.viewport.SetContent(m.renderBody())
			return m, nil
		case tea.KeyTab:
			m.product = (m.product + 1) % len(domain.ProductOptions)
			return m, nil
		case tea.KeyShiftTab:
			m.product = (m.product - 1 + len(domain.ProductOptions)) % len(domain.ProductOptions)
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.busy {
				return m, nil
			}
			if m.service == nil || m.loadErr != nil {
				m.status = "System not ready: " + m.notReadyReason()
				return m, nil
			}
			m.busy = true
			m.status = "Searching complaints..."
			return m, tea.Batch(m.spinner.Tick, m.ask(question, m.Product()))
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Product is the currently selected product scope.
func (m Model) Product() string {
	return domain.ProductOptions[m.product]
}

func (m Model) ask(question, product string) tea.Cmd {
	service, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		answer, err := service.Query(ctx, question, product)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func (m Model) notReadyReason() string {
	if m.loadErr != nil {
		return m.loadErr.Error()
	}
	return "no index loaded"
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("CrediTrust Complaint Analyst")
	scope := mutedStyle.Render("Product: ") + productStyle.Render(m.Product())

	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	statusLine := statusStyle.Render(status)
	if m.service == nil || m.loadErr != nil {
		statusLine = errorStyle.Render("System not ready: " + m.notReadyReason())
	}

	return header + "  " + scope + "\n" +
		bodyStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusLine
}

func (m Model) renderBody() string {
	if m.answer == nil {
		return mutedStyle.Render("Ask a question such as \"Why are people unhappy with credit cards?\"")
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render("Q: " + m.question))
	b.WriteString("\n\n")
	b.WriteString(m.answer.Answer)
	b.WriteString("\n\n")
	if len(m.answer.SourceDocuments) == 0 {
		b.WriteString(mutedStyle.Render("No matching complaint excerpts."))
		return b.String()
	}
	b.WriteString(titleStyle.Render("Sources"))
	for i, src := range m.answer.SourceDocuments {
		fmt.Fprintf(&b, "\n%s %s\n%s\n",
			productStyle.Render(fmt.Sprintf("[%d] %s", i+1, src.Product)),
			mutedStyle.Render(fmt.Sprintf("score=%.3f id=%s", src.Score, src.ChunkID)),
			truncate(src.Text, excerptRunes),
		)
	}
	return b.String()
}

func truncate(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n]) + "..."
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	productStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	bodyStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
