package store

import (
	"context"
	"fmt"
	"strings"

	"trendforge/importer/internal/database"
)

// TagStore manages vocabulary terms.
type TagStore struct {
	db *database.DB
}

// NewTagStore creates a new TagStore.
func NewTagStore(db *database.DB) *TagStore {
	return &TagStore{db: db}
}

// ListVocabularyTerms returns the names of all terms in a vocabulary, sorted by name.
func (s *TagStore) ListVocabularyTerms(ctx context.Context, vocabulary string) ([]string, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names,
		s.db.Rebind(`SELECT name FROM terms WHERE vocabulary = ? ORDER BY name_key`), vocabulary)
	if err != nil {
		return nil, fmt.Errorf("failed to list terms of %s: %w", vocabulary, err)
	}
	return names, nil
}

// FindOrCreateTerm returns the id of the term matching name case-insensitively,
// creating it when missing.
func (s *TagStore) FindOrCreateTerm(ctx context.Context, vocabulary, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("term name cannot be empty")
	}
	key := strings.ToLower(name)

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO terms (vocabulary, name, name_key) VALUES (?, ?, ?)
		ON CONFLICT (vocabulary, name_key) DO NOTHING`),
		vocabulary, name, key)
	if err != nil {
		return 0, fmt.Errorf("failed to create term %q: %w", name, err)
	}

	var id int64
	err = s.db.GetContext(ctx, &id,
		s.db.Rebind(`SELECT id FROM terms WHERE vocabulary = ? AND name_key = ?`), vocabulary, key)
	if err != nil {
		return 0, fmt.Errorf("failed to load term %q: %w", name, err)
	}
	return id, nil
}
