package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateProject inserts a new project and returns it.
func (s *Store) CreateProject(name string) (*Project, error) {
	now := time.Now()
	p := &Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.conn.Exec(`
		INSERT INTO projects (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// RenameProject updates a project's name.
func (s *Store) RenameProject(id, name string) error {
	res, err := s.db.conn.Exec(`
		UPDATE projects SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// DeleteProject removes a project; its documents and versions cascade.
func (s *Store) DeleteProject(id string) error {
	res, err := s.db.conn.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.db.conn.Query(`
		SELECT id, name, created_at, updated_at
		FROM projects
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		var p Project
		var createdAt, updatedAt int64
		if err := rows.Scan(&p.ID, &p.Name, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		p.UpdatedAt = time.Unix(updatedAt, 0)
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// GetProject loads one project by id.
func (s *Store) GetProject(id string) (*Project, error) {
	var p Project
	var createdAt, updatedAt int64
	err := s.db.conn.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// ProjectExists reports whether a project id is present.
func (s *Store) ProjectExists(id string) (bool, error) {
	var one int
	err := s.db.conn.QueryRow("SELECT 1 FROM projects WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check project: %w", err)
	}
	return true, nil
}
