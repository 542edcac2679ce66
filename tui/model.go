package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/siherrmann/ragchat/core/session"
	"github.com/siherrmann/ragchat/model"
)

// ChatPort is the TUI-facing subset of the chatbot.
type ChatPort interface {
	Ask(ctx context.Context, sess *session.Session, query string) string
	IngestAndIndex(ctx context.Context, dir string) (*model.IngestionReport, error)
	ClearIndex(ctx context.Context) error
	ResetSession(sess *session.Session)
}

type answerMsg struct {
	answer string
}

type ingestMsg struct {
	report *model.IngestionReport
	err    error
}

type clearIndexMsg struct {
	err error
}

// Model is the Bubble Tea model of the terminal chat.
type Model struct {
	chat     ChatPort
	session  *session.Session
	input    textinput.Model
	viewport viewport.Model
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model for sess.
func New(chat ChatPort, sess *session.Session, status string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /ingest, /clear, /reset, /clear-index or /quit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{chat: chat, session: sess, input: ti, viewport: vp, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		// header, status and spacer lines
		vh := msg.Height - ih - 3
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-bh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.pending = false
		m.status = "Ready."
		m.refresh()
		return m, nil
	case ingestMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.session.MarkDocumentsProcessed()
			m.status = fmt.Sprintf("Indexed %d chunks from %d files, skipped %d.", msg.report.Chunks, len(msg.report.Files), len(msg.report.Skipped))
		}
		return m, nil
	case clearIndexMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = "Index cleared."
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.pending {
		m.status = "Still working on the last request..."
		return m, nil
	}
	m.input.Reset()

	switch text {
	case "/quit":
		return m, tea.Quit
	case "/reset":
		m.chat.ResetSession(m.session)
		m.status = "Started a new session."
		m.refresh()
		return m, nil
	case "/clear":
		m.session.ClearMessages()
		m.status = "Chat cleared."
		m.refresh()
		return m, nil
	case "/ingest":
		m.pending = true
		m.status = "Ingesting documents..."
		chat := m.chat
		return m, func() tea.Msg {
			report, err := chat.IngestAndIndex(context.Background(), "")
			return ingestMsg{report: report, err: err}
		}
	case "/clear-index":
		m.pending = true
		m.status = "Clearing index..."
		chat := m.chat
		return m, func() tea.Msg {
			return clearIndexMsg{err: chat.ClearIndex(context.Background())}
		}
	}

	m.pending = true
	m.status = "Thinking..."
	chat, sess := m.chat, m.session
	return m, func() tea.Msg {
		return answerMsg{answer: chat.Ask(context.Background(), sess, text)}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// View renders the history, the input and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	history := historyBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + history + "\n" + input + "\n" + status
}

func (m Model) renderHistory() string {
	messages := m.session.Messages()
	if len(messages) == 0 {
		return "No messages yet."
	}

	lines := make([]string, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case model.RoleUser:
			lines = append(lines, userStyle.Render("You: ")+message.Content)
		default:
			lines = append(lines, assistantStyle.Render("Bot: ")+message.Content)
		}
	}
	return strings.Join(lines, "\n\n")
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)
