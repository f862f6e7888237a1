package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/parley/internal/knowledge"
)

// KnowledgeRepository persists admin-taught knowledge entries.
// It implements knowledge.CustomStore.
type KnowledgeRepository struct {
	db *pgxpool.Pool
}

// NewKnowledgeRepository creates a KnowledgeRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewKnowledgeRepository(db *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Name implements knowledge.Searcher.
func (r *KnowledgeRepository) Name() string { return knowledge.CustomSource }

// Learn inserts the entry or replaces the content of an existing keyword.
//
// Postcondition: Returns knowledge.ErrEmptyKeyword for a blank keyword.
func (r *KnowledgeRepository) Learn(ctx context.Context, e knowledge.CustomEntry) error {
	key := knowledge.NormalizeKeyword(e.Keyword)
	if key == "" {
		return knowledge.ErrEmptyKeyword
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_entries (keyword, content, author, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (keyword) DO UPDATE
		 SET content = EXCLUDED.content, author = EXCLUDED.author, updated_at = EXCLUDED.updated_at`,
		key, e.Content, e.Author, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting knowledge entry: %w", err)
	}
	return nil
}

// Forget deletes keyword.
//
// Postcondition: Returns knowledge.ErrEntryNotFound if no row matched.
func (r *KnowledgeRepository) Forget(ctx context.Context, keyword string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_entries WHERE keyword = $1`,
		knowledge.NormalizeKeyword(keyword),
	)
	if err != nil {
		return fmt.Errorf("deleting knowledge entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return knowledge.ErrEntryNotFound
	}
	return nil
}

// Count returns the number of stored entries.
func (r *KnowledgeRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting knowledge entries: %w", err)
	}
	return n, nil
}

// Search returns entries whose keyword occurs in query, longest keyword first.
func (r *KnowledgeRepository) Search(ctx context.Context, query string, limit int) ([]knowledge.Entry, error) {
	q := knowledge.NormalizeKeyword(query)
	if q == "" || limit < 1 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT keyword, content, author, created_at
		 FROM knowledge_entries
		 WHERE strpos($1, keyword) > 0
		 ORDER BY length(keyword) DESC, keyword
		 LIMIT $2`,
		q, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge entries: %w", err)
	}
	defer rows.Close()

	var out []knowledge.Entry
	for rows.Next() {
		var e knowledge.CustomEntry
		if err := rows.Scan(&e.Keyword, &e.Content, &e.Author, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge entry: %w", err)
		}
		out = append(out, knowledge.CustomToEntry(e))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating knowledge entries: %w", err)
	}
	return out, nil
}
