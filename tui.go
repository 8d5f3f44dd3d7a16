package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/inkwell-studio/inkwell/storage"
	"github.com/inkwell-studio/inkwell/workspace"
)

const (
	ctrlCDebounceTime = 200 * time.Millisecond  // Debounce duplicate ctrl-c events
	ctrlCWindowTime   = 2000 * time.Millisecond // Window for double ctrl-c to quit

	defaultProjectName  = "My Project"
	defaultDocumentName = "Untitled"

	// generationSystemPrompt steers document-generation streams.
	generationSystemPrompt = "You are a collaborative writing partner. " +
		"Draft prose from the author's notes, matching their tone and intent. " +
		"Reply with the draft only, no commentary."
)

// focusArea identifies which pane receives keyboard input
type focusArea int

const (
	focusEditor focusArea = iota
	focusChat
)

// markdownRendererReadyMsg is sent when the glamour renderer is ready
type markdownRendererReadyMsg struct {
	renderer *glamour.TermRenderer
}

type statusExpiredMsg struct{}

// TUIModel represents the bubbletea model for the TUI
type TUIModel struct {
	config *Config
	ws     *workspace.Store
	store  *storage.Store
	theme  *Theme

	width, height int

	// UI Components
	editor    textarea.Model
	chatInput textinput.Model
	chatView  viewport.Model
	spin      spinner.Model
	renderer  *glamour.TermRenderer

	// UI Flags & State
	focus        focusArea
	llmReady     bool
	llmErr       error
	statusMsg    string
	editorTabID  string // tab whose document is loaded into the editor
	ctrlCPressed time.Time
}

// NewTUIModel creates a new TUI model
func NewTUIModel(config *Config, ws *workspace.Store, store *storage.Store) *TUIModel {
	theme := NewTheme()

	editor := textarea.New()
	editor.Placeholder = "Start writing..."
	editor.CharLimit = 0
	editor.ShowLineNumbers = false
	editor.Focus()

	chatInput := textinput.New()
	chatInput.Placeholder = "Ask your writing partner..."
	chatInput.CharLimit = 0

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(theme.ChatBorder)

	model := &TUIModel{
		config:    config,
		ws:        ws,
		store:     store,
		theme:     theme,
		editor:    editor,
		chatInput: chatInput,
		chatView:  viewport.New(40, 10),
		spin:      spin,
		focus:     focusEditor,
	}

	model.ensureWorkspace()
	model.loadActiveDocument()
	return model
}

// ensureWorkspace guarantees there is a project with at least one open tab, so
// a first run drops the author straight into an editor.
func (m *TUIModel) ensureWorkspace() {
	if m.ws.CurrentProjectID() == "" {
		p, err := m.store.CreateProject(defaultProjectName)
		if err != nil {
			slog.Error("failed to create initial project", "error", err)
			return
		}
		if err := m.ws.SwitchProject(p.ID); err != nil {
			slog.Error("failed to select initial project", "error", err)
			return
		}
	}
	if m.ws.ActiveTab() == nil {
		var doc *workspace.Document
		if docs := m.ws.Documents(); len(docs) > 0 {
			doc = docs[0]
		} else {
			var err error
			doc, err = m.ws.CreateDocument(defaultDocumentName)
			if err != nil {
				slog.Error("failed to create initial document", "error", err)
				return
			}
		}
		if _, err := m.ws.OpenDocument(doc.ID); err != nil {
			slog.Error("failed to open initial document", "error", err)
		}
	}
}

// Init implements bubbletea.Model
func (m *TUIModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.initRendererCmd())
}

// initRendererCmd builds the markdown renderer off the update loop; glamour
// style detection is too slow for startup.
func (m *TUIModel) initRendererCmd() tea.Cmd {
	if !m.config.UI.MarkdownEnabled {
		return nil
	}
	return func() tea.Msg {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(76),
		)
		if err != nil {
			slog.Error("failed to initialize markdown renderer", "error", err)
			return nil
		}
		return markdownRendererReadyMsg{renderer: renderer}
	}
}

// Update implements bubbletea.Model
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		return m.handleWindowSizeMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case workspace.ChunkEvent:
		m.ws.HandleChunk(msg)
		m.refreshChat()
		return m, nil

	case workspace.StreamDoneEvent:
		m.ws.HandleStreamDone(msg)
		m.loadActiveDocument()
		m.refreshChat()
		return m, nil

	case llmInitSuccessMsg:
		m.llmReady = true
		m.llmErr = nil
		return m, nil

	case llmInitErrorMsg:
		m.llmErr = msg.err
		return m, m.setStatus("AI unavailable: " + msg.err.Error())

	case markdownRendererReadyMsg:
		m.renderer = msg.renderer
		m.refreshChat()
		return m, nil

	case statusExpiredMsg:
		m.statusMsg = ""
		return m, nil
	}

	return m, nil
}

func (m *TUIModel) handleWindowSizeMsg(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.layout()
	m.refreshChat()
	return m, nil
}

// layout recomputes pane sizes from the window and the active tab's panel
// state.
func (m *TUIModel) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	contentHeight := m.height - 4 // tab bar + status bar + borders

	tab := m.ws.ActiveTab()
	editorWidth := m.width - 2
	if tab != nil && tab.PanelState.ChatOpen {
		ratio := tab.PanelState.SplitRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		editorWidth = int(float64(m.width)*ratio) - 2
		chatWidth := m.width - editorWidth - 4
		m.chatView.Width = chatWidth
		m.chatView.Height = contentHeight - 2
		m.chatInput.Width = chatWidth - 2
	}
	m.editor.SetWidth(editorWidth)
	m.editor.SetHeight(contentHeight)
}

func (m *TUIModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()

	if keyStr == "ctrl+c" {
		now := time.Now()
		sinceFirst := now.Sub(m.ctrlCPressed)
		if !m.ctrlCPressed.IsZero() && sinceFirst < ctrlCDebounceTime {
			return m, nil
		}
		if !m.ctrlCPressed.IsZero() && sinceFirst < ctrlCWindowTime {
			m.commitEditor()
			return m, tea.Quit
		}
		m.ctrlCPressed = now
		return m, m.setStatus("Press CTRL-C again to exit")
	}
	if !m.ctrlCPressed.IsZero() {
		m.ctrlCPressed = time.Time{}
	}

	switch keyStr {
	case "esc":
		return m.handleEscape()

	case "tab":
		if m.activeChatOpen() {
			m.toggleFocus()
			return m, nil
		}

	case "ctrl+s":
		return m.handleSave()

	case "ctrl+n":
		return m.handleNewDocument()

	case "ctrl+w":
		return m.handleCloseTab()

	case "ctrl+g":
		return m.handleGenerate()

	case "ctrl+h":
		return m.handleToggleChat()

	case "alt+right":
		m.cycleTab(1)
		return m, nil

	case "alt+left":
		m.cycleTab(-1)
		return m, nil

	case "enter":
		if m.focus == focusChat {
			return m.handleSendChat()
		}
	}

	var cmd tea.Cmd
	if m.focus == focusChat {
		m.chatInput, cmd = m.chatInput.Update(msg)
	} else {
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

// handleEscape stops the active tab's stream if one is live; otherwise it
// returns focus to the editor.
func (m *TUIModel) handleEscape() (tea.Model, tea.Cmd) {
	tab := m.ws.ActiveTab()
	if tab != nil && m.ws.Streaming(tab.ID) {
		partial := m.ws.StopStream(tab.ID)
		m.loadActiveDocument()
		m.refreshChat()
		slog.Debug("stream stopped by user", "tab", tab.ID, "partial_len", len(partial))
		return m, m.setStatus("Stream stopped")
	}
	if m.focus == focusChat {
		m.toggleFocus()
	}
	return m, nil
}

func (m *TUIModel) handleSave() (tea.Model, tea.Cmd) {
	tab := m.ws.ActiveTab()
	if tab == nil {
		return m, nil
	}
	m.commitEditor()
	if err := m.ws.SaveDocument(tab.DocumentID, "Manual save"); err != nil {
		slog.Error("save failed", "document", tab.DocumentID, "error", err)
		return m, m.setStatus("Save failed: " + err.Error())
	}
	return m, m.setStatus("Saved")
}

func (m *TUIModel) handleNewDocument() (tea.Model, tea.Cmd) {
	m.commitEditor()
	doc, err := m.ws.CreateDocument(defaultDocumentName)
	if err != nil {
		return m, m.setStatus("New document failed: " + err.Error())
	}
	if _, err := m.ws.OpenDocument(doc.ID); err != nil {
		return m, m.setStatus("Open failed: " + err.Error())
	}
	m.loadActiveDocument()
	m.refreshChat()
	return m, nil
}

func (m *TUIModel) handleCloseTab() (tea.Model, tea.Cmd) {
	tab := m.ws.ActiveTab()
	if tab == nil {
		return m, nil
	}
	m.commitEditor()
	if err := m.ws.CloseTab(tab.ID, true); err != nil {
		return m, m.setStatus("Close failed: " + err.Error())
	}
	m.editorTabID = ""
	m.loadActiveDocument()
	m.refreshChat()
	return m, nil
}

func (m *TUIModel) handleGenerate() (tea.Model, tea.Cmd) {
	tab := m.ws.ActiveTab()
	if tab == nil {
		return m, nil
	}
	m.commitEditor()
	_, err := m.ws.GenerateContent(tab.ID, generationSystemPrompt, m.streamOptions())
	if err != nil {
		return m, m.setStatus("Generate failed: " + err.Error())
	}
	return m, m.setStatus("Generating...")
}

func (m *TUIModel) handleToggleChat() (tea.Model, tea.Cmd) {
	tab := m.ws.ActiveTab()
	if tab == nil {
		return m, nil
	}
	panel := tab.PanelState
	panel.ChatOpen = !panel.ChatOpen
	if err := m.ws.UpdatePanelState(tab.ID, panel); err != nil {
		slog.Warn("failed to update panel state", "tab", tab.ID, "error", err)
	}
	if !panel.ChatOpen && m.focus == focusChat {
		m.toggleFocus()
	}
	m.layout()
	m.refreshChat()
	return m, nil
}

func (m *TUIModel) handleSendChat() (tea.Model, tea.Cmd) {
	tab := m.ws.ActiveTab()
	text := strings.TrimSpace(m.chatInput.Value())
	if tab == nil || text == "" {
		return m, nil
	}
	m.commitEditor()
	_, err := m.ws.SendChatMessage(tab.ID, text, workspace.ContextContent, m.streamOptions())
	if err != nil {
		return m, m.setStatus("Chat failed: " + err.Error())
	}
	m.chatInput.SetValue("")
	m.refreshChat()
	return m, nil
}

func (m *TUIModel) streamOptions() workspace.StreamOptions {
	return workspace.StreamOptions{
		Model:          m.config.LLM.Model,
		EnableThinking: m.config.LLM.EnableThinking,
	}
}

// cycleTab switches to the neighboring tab, committing the editor buffer
// first.
func (m *TUIModel) cycleTab(delta int) {
	tabs := m.ws.Tabs()
	if len(tabs) < 2 {
		return
	}
	active := m.ws.ActiveTab()
	idx := 0
	for i, t := range tabs {
		if active != nil && t.ID == active.ID {
			idx = i
			break
		}
	}
	next := (idx + delta + len(tabs)) % len(tabs)
	m.commitEditor()
	if err := m.ws.SwitchTab(tabs[next].ID); err != nil {
		slog.Warn("failed to switch tab", "tab", tabs[next].ID, "error", err)
		return
	}
	m.loadActiveDocument()
	m.refreshChat()
	m.layout()
}

func (m *TUIModel) toggleFocus() {
	if m.focus == focusEditor {
		m.focus = focusChat
		m.editor.Blur()
		m.chatInput.Focus()
	} else {
		m.focus = focusEditor
		m.chatInput.Blur()
		m.editor.Focus()
	}
}

func (m *TUIModel) activeChatOpen() bool {
	tab := m.ws.ActiveTab()
	return tab != nil && tab.PanelState.ChatOpen
}

// commitEditor writes the editor buffer back into the active document. Called
// before any operation that leaves the current tab or reads document state.
func (m *TUIModel) commitEditor() {
	if m.editorTabID == "" {
		return
	}
	tab := m.ws.ActiveTab()
	if tab == nil || tab.ID != m.editorTabID {
		return
	}
	doc, ok := m.ws.Document(tab.DocumentID)
	if !ok {
		return
	}
	if doc.Content != m.editor.Value() {
		if err := m.ws.UpdateContent(doc.ID, m.editor.Value()); err != nil {
			slog.Warn("failed to update document content", "document", doc.ID, "error", err)
		}
	}
}

// loadActiveDocument loads the active tab's document into the editor when the
// selection changed, or refreshes it in place after AI generation.
func (m *TUIModel) loadActiveDocument() {
	tab := m.ws.ActiveTab()
	if tab == nil {
		m.editorTabID = ""
		m.editor.SetValue("")
		return
	}
	doc, ok := m.ws.Document(tab.DocumentID)
	if !ok {
		return
	}
	if tab.ID != m.editorTabID {
		m.editorTabID = tab.ID
		m.editor.SetValue(doc.Content)
		m.editor.CursorEnd()
	}
}

// refreshChat re-renders the active tab's transcript into the viewport.
func (m *TUIModel) refreshChat() {
	tab := m.ws.ActiveTab()
	if tab == nil {
		m.chatView.SetContent("")
		return
	}

	var b strings.Builder
	for _, msg := range m.ws.Messages(tab.ID) {
		switch msg.Role {
		case workspace.RoleUser:
			b.WriteString(m.theme.RenderUser("You: " + msg.Content).String())
		case workspace.RoleAssistant:
			if msg.Thinking != "" {
				b.WriteString(m.theme.RenderThinking(msg.Thinking).String())
				b.WriteString("\n")
			}
			b.WriteString(m.renderMarkdown(msg.Content))
		}
		b.WriteString("\n\n")
	}

	if pending, ok := m.ws.PendingAssistant(tab.ID); ok {
		if pending.Thinking != "" {
			b.WriteString(m.theme.RenderThinking(pending.Thinking).String())
			b.WriteString("\n")
		}
		b.WriteString(pending.Content)
		b.WriteString("\n")
		b.WriteString(m.spin.View())
	} else if out := m.ws.LastOutcome(tab.ID); out != nil && out.Status == workspace.StatusFailed {
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.Error).Render(
			fmt.Sprintf("Error: %v", out.Err)))
	}

	m.chatView.SetContent(wordwrap.String(b.String(), max(m.chatView.Width, 20)))
	m.chatView.GotoBottom()
}

func (m *TUIModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func (m *TUIModel) setStatus(text string) tea.Cmd {
	m.statusMsg = text
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return statusExpiredMsg{}
	})
}

// View implements bubbletea.Model
func (m *TUIModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()

	tab := m.ws.ActiveTab()
	editorStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.paneBorder(focusEditor))

	if tab == nil {
		empty := lipgloss.NewStyle().
			Foreground(m.theme.Muted).
			Width(m.width).
			Height(m.height-2).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No open documents. Press ctrl+n to create one.")
		return lipgloss.JoinVertical(lipgloss.Left, tabBar, empty, statusBar)
	}

	editorPane := editorStyle.Render(m.editor.View())
	var body string
	if tab.PanelState.ChatOpen {
		chatStyle := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(m.paneBorder(focusChat))
		chatPane := chatStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			m.chatView.View(),
			m.chatInput.View(),
		))
		body = lipgloss.JoinHorizontal(lipgloss.Top, editorPane, chatPane)
	} else {
		body = editorPane
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabBar, body, statusBar)
}

func (m *TUIModel) paneBorder(area focusArea) lipgloss.Color {
	if m.focus == area {
		return m.theme.FocusOnBorder
	}
	return m.theme.FocusOffBorder
}

func (m *TUIModel) renderTabBar() string {
	var cells []string
	active := m.ws.ActiveTab()
	for _, tab := range m.ws.Tabs() {
		title := tab.Title
		if tab.IsDirty {
			title += " *"
		}
		if m.ws.Streaming(tab.ID) {
			title += " " + m.spin.View()
		}
		style := m.theme.TabInactive
		if active != nil && tab.ID == active.ID {
			style = m.theme.TabActive
		} else if tab.IsDirty {
			style = m.theme.TabDirty
		}
		cells = append(cells, style.Render(title))
	}
	return lipgloss.NewStyle().Width(m.width).Render(strings.Join(cells, " "))
}

func (m *TUIModel) renderStatusBar() string {
	left := m.statusMsg
	if left == "" {
		switch {
		case m.llmReady:
			left = fmt.Sprintf("%s/%s", m.config.LLM.Provider, m.config.LLM.Model)
		case m.llmErr != nil:
			left = "AI offline"
		default:
			left = "connecting..."
		}
	}

	var right string
	if tab := m.ws.ActiveTab(); tab != nil {
		if doc, ok := m.ws.Document(tab.DocumentID); ok {
			right = fmt.Sprintf("%d words", doc.Metadata.WordCount)
		}
		if m.ws.Streaming(tab.ID) {
			right = "streaming (esc to stop)  " + right
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Foreground(m.theme.Muted).
		Render(" " + left + strings.Repeat(" ", gap) + right + " ")
}
