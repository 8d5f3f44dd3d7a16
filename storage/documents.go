package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/inkwell-studio/inkwell/workspace"
)

// Store implements workspace.Persistence over the SQLite database.
type Store struct {
	db *DB
}

// NewStore creates a document store over an initialized database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// SaveDocument upserts the document row and replaces its version history in
// one transaction. The version cap is enforced upstream, so the history is
// written as-is.
func (s *Store) SaveDocument(doc *workspace.Document) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	attachments, err := json.Marshal(doc.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}
	enabledPlugins, err := json.Marshal(doc.EnabledPlugins)
	if err != nil {
		return fmt.Errorf("failed to marshal enabled plugins: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO documents
		(id, project_id, title, content, author_notes, ai_generated_content,
		 composed_content, current_version_id, attachments, plugin_data,
		 enabled_plugins, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		doc.ProjectID,
		doc.Title,
		doc.Content,
		doc.AuthorNotes,
		doc.AIGeneratedContent,
		doc.ComposedContent,
		doc.CurrentVersionID,
		string(attachments),
		nullableJSON(doc.PluginData),
		string(enabledPlugins),
		string(metadata),
		doc.Metadata.CreatedAt.Unix(),
		doc.Metadata.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	// Replace version history
	if _, err := tx.Exec("DELETE FROM document_versions WHERE document_id = ?", doc.ID); err != nil {
		return fmt.Errorf("failed to delete old versions: %w", err)
	}
	for i, v := range doc.Versions {
		plugins, err := json.Marshal(v.EnabledPlugins)
		if err != nil {
			return fmt.Errorf("failed to marshal version plugins: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO document_versions
			(id, document_id, content, author_notes, ai_generated_content,
			 composed_content, created_at, created_by, change_description,
			 plugin_data, enabled_plugins)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID,
			doc.ID,
			v.Content,
			v.AuthorNotes,
			v.AIGeneratedContent,
			v.ComposedContent,
			v.CreatedAt.UnixNano(),
			v.CreatedBy,
			v.ChangeDescription,
			nullableJSON(v.PluginData),
			string(plugins),
		)
		if err != nil {
			return fmt.Errorf("failed to insert version %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	slog.Debug("document saved", "id", doc.ID, "versions", len(doc.Versions))
	return nil
}

// LoadDocument loads one document with its version history.
func (s *Store) LoadDocument(id string) (*workspace.Document, error) {
	doc, err := s.scanDocument(s.db.conn.QueryRow(`
		SELECT id, project_id, title, content, author_notes, ai_generated_content,
		       composed_content, current_version_id, attachments, plugin_data,
		       enabled_plugins, metadata
		FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if err := s.loadVersions(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments loads every document in a project, versions included.
func (s *Store) ListDocuments(projectID string) ([]*workspace.Document, error) {
	rows, err := s.db.conn.Query(`
		SELECT id, project_id, title, content, author_notes, ai_generated_content,
		       composed_content, current_version_id, attachments, plugin_data,
		       enabled_plugins, metadata
		FROM documents
		WHERE project_id = ?
		ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*workspace.Document
	for rows.Next() {
		doc, err := s.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if err := s.loadVersions(doc); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// DeleteDocument removes a document; versions cascade.
func (s *Store) DeleteDocument(id string) error {
	res, err := s.db.conn.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanDocument(row rowScanner) (*workspace.Document, error) {
	var doc workspace.Document
	var attachments, enabledPlugins, metadata string
	var pluginData sql.NullString
	err := row.Scan(
		&doc.ID,
		&doc.ProjectID,
		&doc.Title,
		&doc.Content,
		&doc.AuthorNotes,
		&doc.AIGeneratedContent,
		&doc.ComposedContent,
		&doc.CurrentVersionID,
		&attachments,
		&pluginData,
		&enabledPlugins,
		&metadata,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(attachments), &doc.Attachments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attachments: %w", err)
	}
	if err := json.Unmarshal([]byte(enabledPlugins), &doc.EnabledPlugins); err != nil {
		return nil, fmt.Errorf("failed to unmarshal enabled plugins: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if pluginData.Valid {
		doc.PluginData = json.RawMessage(pluginData.String)
	}
	return &doc, nil
}

func (s *Store) loadVersions(doc *workspace.Document) error {
	rows, err := s.db.conn.Query(`
		SELECT id, content, author_notes, ai_generated_content, composed_content,
		       created_at, created_by, change_description, plugin_data, enabled_plugins
		FROM document_versions
		WHERE document_id = ?
		ORDER BY created_at, id`, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to load versions: %w", err)
	}
	defer rows.Close()

	doc.Versions = nil
	for rows.Next() {
		var v workspace.DocumentVersion
		var createdAt int64
		var pluginData sql.NullString
		var plugins string
		if err := rows.Scan(
			&v.ID,
			&v.Content,
			&v.AuthorNotes,
			&v.AIGeneratedContent,
			&v.ComposedContent,
			&createdAt,
			&v.CreatedBy,
			&v.ChangeDescription,
			&pluginData,
			&plugins,
		); err != nil {
			return fmt.Errorf("failed to scan version: %w", err)
		}
		v.DocumentID = doc.ID
		v.CreatedAt = time.Unix(0, createdAt)
		if pluginData.Valid {
			v.PluginData = json.RawMessage(pluginData.String)
		}
		if err := json.Unmarshal([]byte(plugins), &v.EnabledPlugins); err != nil {
			return fmt.Errorf("failed to unmarshal version plugins: %w", err)
		}
		doc.Versions = append(doc.Versions, v)
	}
	return rows.Err()
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
