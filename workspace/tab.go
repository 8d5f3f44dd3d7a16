package workspace

import (
	"time"

	"github.com/google/uuid"
)

// PanelState is per-tab presentation state. It belongs to the tab, not the
// document: two tabs on the same document may use different layouts.
type PanelState struct {
	VersionHistoryOpen bool    `json:"versionHistoryOpen"`
	ChatOpen           bool    `json:"chatOpen"`
	RightSidebarOpen   bool    `json:"rightSidebarOpen"`
	LayoutMode         string  `json:"layoutMode,omitempty"`
	SplitRatio         float64 `json:"splitRatio,omitempty"`
	ChatPanelWidth     float64 `json:"chatPanelWidth,omitempty"`
}

// DefaultPanelState is the layout a freshly opened tab starts with.
func DefaultPanelState() PanelState {
	return PanelState{
		ChatOpen:   true,
		LayoutMode: "split",
		SplitRatio: 0.5,
	}
}

// Tab binds one open document to its presentation state. A tab references its
// document by id only and never outlives it.
type Tab struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Title      string     `json:"title"`
	IsDirty    bool       `json:"isDirty"`
	IsActive   bool       `json:"isActive"`
	Order      int        `json:"order"`
	PanelState PanelState `json:"panelState"`
}

func newTab(doc *Document, order int) *Tab {
	return &Tab{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Title:      doc.Title,
		Order:      order,
		PanelState: DefaultPanelState(),
	}
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ContextMode tags which document field a chat message was scoped to.
type ContextMode string

const (
	ContextNone        ContextMode = ""
	ContextContent     ContextMode = "content"
	ContextAuthorNotes ContextMode = "authorNotes"
	ContextAIContent   ContextMode = "aiGeneratedContent"
)

// AIMessage is one entry in a tab's chat transcript.
type AIMessage struct {
	Role        Role        `json:"role"`
	Content     string      `json:"content"`
	Thinking    string      `json:"thinking,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	ContextMode ContextMode `json:"contextMode,omitempty"`
}
