package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"docs_syncer/internal/domain"
)

// ErrArticleNotFound is returned by GetBySlug when no article has the slug.
var ErrArticleNotFound = errors.New("article not found")

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

// ListAll returns every stored article.
func (s *ArticleStore) ListAll(ctx context.Context) ([]domain.Article, error) {
	query := `
		SELECT id, slug, title, content, external_id, last_updated, created_at, updated_at
		FROM articles
		ORDER BY last_updated DESC`

	var articles []domain.Article
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &articles, query); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

func (s *ArticleStore) GetBySlug(ctx context.Context, slug string) (*domain.Article, error) {
	query := `
		SELECT id, slug, title, content, external_id, last_updated, created_at, updated_at
		FROM articles
		WHERE slug = $1`

	var article domain.Article
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &article, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article by slug: %w", err)
	}
	return &article, nil
}

// UpsertMany writes the drafts in one statement, keyed by external_id.
// A batch may mix new and existing rows. Returns the number of rows written.
func (s *ArticleStore) UpsertMany(ctx context.Context, drafts []domain.ArticleDraft) (int, error) {
	if len(drafts) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO articles (slug, title, content, external_id, last_updated) VALUES `)
	args := make([]interface{}, 0, len(drafts)*5)

	for i, d := range drafts {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)
		args = append(args, d.Slug, d.Title, d.Content, d.ExternalID, d.LastUpdated)
	}

	sb.WriteString(`
		ON CONFLICT (external_id) DO UPDATE SET
			slug = EXCLUDED.slug,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			last_updated = EXCLUDED.last_updated,
			updated_at = now()`)

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("upsert articles: %w", err)
	}

	written, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(written), nil
}

// DeleteByExternalID removes the article and reports whether a row existed.
func (s *ArticleStore) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"DELETE FROM articles WHERE external_id = $1",
		externalID,
	)
	if err != nil {
		return false, fmt.Errorf("delete article: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
