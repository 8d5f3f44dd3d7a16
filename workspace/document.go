package workspace

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxVersions caps per-document version history to bound storage growth.
const maxVersions = 1000

// Attachment is a file associated with a document.
type Attachment struct {
	ID       string    `json:"id"`
	FileName string    `json:"fileName"`
	FilePath string    `json:"filePath"`
	FileSize int64     `json:"fileSize"`
	FileType string    `json:"fileType"`
	AddedAt  time.Time `json:"addedAt"`
}

// DocumentMetadata holds bookkeeping fields maintained by the store.
type DocumentMetadata struct {
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Author         string    `json:"author"`
	Tags           []string  `json:"tags"`
	WordCount      int       `json:"wordCount"`
	CharacterCount int       `json:"characterCount"`
}

// DocumentVersion is an immutable snapshot of a document's bodies taken on save.
type DocumentVersion struct {
	ID                string          `json:"id"`
	DocumentID        string          `json:"documentId"`
	Content           string          `json:"content"`
	AuthorNotes       string          `json:"authorNotes"`
	AIGeneratedContent string         `json:"aiGeneratedContent"`
	ComposedContent   string          `json:"composedContent,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	CreatedBy         string          `json:"createdBy"`
	ChangeDescription string          `json:"changeDescription,omitempty"`
	PluginData        json.RawMessage `json:"pluginData,omitempty"`
	EnabledPlugins    []string        `json:"enabledPlugins,omitempty"`
}

// Document is the authoritative record for one editable document. It carries
// three independent text bodies: the manuscript content, the author's working
// notes, and the AI generated draft. Instances are owned by the Store; callers
// must route every mutation through a Store operation.
type Document struct {
	ID                string            `json:"id"`
	ProjectID         string            `json:"projectId"`
	Title             string            `json:"title"`
	Content           string            `json:"content"`
	AuthorNotes       string            `json:"authorNotes"`
	AIGeneratedContent string           `json:"aiGeneratedContent"`
	ComposedContent   string            `json:"composedContent,omitempty"`
	Versions          []DocumentVersion `json:"versions"`
	CurrentVersionID  string            `json:"currentVersionId"`
	Metadata          DocumentMetadata  `json:"metadata"`
	Attachments       []Attachment      `json:"attachments"`
	PluginData        json.RawMessage   `json:"pluginData,omitempty"`
	EnabledPlugins    []string          `json:"enabledPlugins,omitempty"`
}

// NewDocument creates an empty document with its initial version.
func NewDocument(projectID, title, author string) *Document {
	now := time.Now()
	doc := &Document{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		Metadata: DocumentMetadata{
			CreatedAt: now,
			UpdatedAt: now,
			Author:    author,
			Tags:      []string{},
		},
		Attachments: []Attachment{},
	}

	initial := DocumentVersion{
		ID:                uuid.NewString(),
		DocumentID:        doc.ID,
		CreatedAt:         now,
		CreatedBy:         author,
		ChangeDescription: "Initial version",
	}
	doc.Versions = []DocumentVersion{initial}
	doc.CurrentVersionID = initial.ID
	return doc
}

// CreateVersion snapshots the current bodies as a new version and makes it
// current. When the cap is exceeded the oldest non-current version is evicted.
func (d *Document) CreateVersion(createdBy, changeDescription string) *DocumentVersion {
	v := DocumentVersion{
		ID:                 uuid.NewString(),
		DocumentID:         d.ID,
		Content:            d.Content,
		AuthorNotes:        d.AuthorNotes,
		AIGeneratedContent: d.AIGeneratedContent,
		ComposedContent:    d.ComposedContent,
		CreatedAt:          time.Now(),
		CreatedBy:          createdBy,
		ChangeDescription:  changeDescription,
		PluginData:         d.PluginData,
		EnabledPlugins:     append([]string(nil), d.EnabledPlugins...),
	}
	d.Versions = append(d.Versions, v)
	d.CurrentVersionID = v.ID
	d.Metadata.UpdatedAt = v.CreatedAt

	for len(d.Versions) > maxVersions {
		oldest := -1
		for i := range d.Versions {
			if d.Versions[i].ID == d.CurrentVersionID {
				continue
			}
			if oldest == -1 || d.Versions[i].CreatedAt.Before(d.Versions[oldest].CreatedAt) {
				oldest = i
			}
		}
		if oldest == -1 {
			oldest = 0
		}
		d.Versions = append(d.Versions[:oldest], d.Versions[oldest+1:]...)
	}

	return &d.Versions[len(d.Versions)-1]
}

// VersionByID returns the version with the given id, or nil.
func (d *Document) VersionByID(id string) *DocumentVersion {
	for i := range d.Versions {
		if d.Versions[i].ID == id {
			return &d.Versions[i]
		}
	}
	return nil
}

// touch refreshes word/character counts and the updated timestamp. Counts
// cover the manuscript body only, matching what the editor displays.
func (d *Document) touch() {
	d.Metadata.UpdatedAt = time.Now()
	d.Metadata.CharacterCount = len([]rune(d.Content))
	d.Metadata.WordCount = len(strings.Fields(d.Content))
}
