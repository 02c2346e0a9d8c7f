//go:build integration

package postgres

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"docs_syncer/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_create_articles.up.sql"),
			filepath.Join(migrationsPath, "002_create_sync_state.up.sql"),
			filepath.Join(migrationsPath, "003_create_avatars.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM articles")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_state")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM avatars")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) draft(externalID, slug string) domain.ArticleDraft {
	return domain.ArticleDraft{
		Slug:        slug,
		Title:       "Title " + externalID,
		Content:     "content of " + externalID,
		ExternalID:  externalID,
		LastUpdated: time.Now().Truncate(time.Microsecond),
	}
}

func (s *PostgresIntegrationSuite) TestArticleStore_UpsertMany_Insert() {
	store := NewArticleStore(s.db)

	written, err := store.UpsertMany(s.ctx, []domain.ArticleDraft{
		s.draft("doc-1", "first"),
		s.draft("doc-2", "second"),
	})

	s.NoError(err)
	s.Equal(2, written)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles"))
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestArticleStore_UpsertMany_MixedBatch() {
	store := NewArticleStore(s.db)

	_, err := store.UpsertMany(s.ctx, []domain.ArticleDraft{s.draft("doc-1", "first")})
	s.Require().NoError(err)

	updated := s.draft("doc-1", "first")
	updated.Title = "Updated Title"

	written, err := store.UpsertMany(s.ctx, []domain.ArticleDraft{
		updated,
		s.draft("doc-2", "second"),
	})

	s.NoError(err)
	s.Equal(2, written)

	article, err := store.GetBySlug(s.ctx, "first")
	s.Require().NoError(err)
	s.Equal("Updated Title", article.Title)
	s.Equal("doc-1", article.ExternalID)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles"))
	s.Equal(2, count)
}

func (s *PostgresIntegrationSuite) TestArticleStore_UpsertMany_RenameChangesSlug() {
	store := NewArticleStore(s.db)

	_, err := store.UpsertMany(s.ctx, []domain.ArticleDraft{s.draft("doc-1", "old-name")})
	s.Require().NoError(err)

	_, err = store.UpsertMany(s.ctx, []domain.ArticleDraft{s.draft("doc-1", "new-name")})
	s.Require().NoError(err)

	_, err = store.GetBySlug(s.ctx, "old-name")
	s.True(errors.Is(err, ErrArticleNotFound))

	article, err := store.GetBySlug(s.ctx, "new-name")
	s.Require().NoError(err)
	s.Equal("doc-1", article.ExternalID)
}

func (s *PostgresIntegrationSuite) TestArticleStore_GetBySlug_NotFound() {
	store := NewArticleStore(s.db)

	_, err := store.GetBySlug(s.ctx, "missing")
	s.True(errors.Is(err, ErrArticleNotFound))
}

func (s *PostgresIntegrationSuite) TestArticleStore_ListAll() {
	store := NewArticleStore(s.db)

	_, err := store.UpsertMany(s.ctx, []domain.ArticleDraft{
		s.draft("doc-1", "first"),
		s.draft("doc-2", "second"),
	})
	s.Require().NoError(err)

	articles, err := store.ListAll(s.ctx)
	s.NoError(err)
	s.Len(articles, 2)
}

func (s *PostgresIntegrationSuite) TestArticleStore_DeleteByExternalID() {
	store := NewArticleStore(s.db)

	_, err := store.UpsertMany(s.ctx, []domain.ArticleDraft{s.draft("doc-1", "first")})
	s.Require().NoError(err)

	found, err := store.DeleteByExternalID(s.ctx, "doc-1")
	s.NoError(err)
	s.True(found)

	found, err = store.DeleteByExternalID(s.ctx, "doc-1")
	s.NoError(err)
	s.False(found)
}

func (s *PostgresIntegrationSuite) TestTransactionManager_RollsBackOnError() {
	store := NewArticleStore(s.db)
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		if _, err := store.UpsertMany(txCtx, []domain.ArticleDraft{s.draft("doc-1", "first")}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	s.Error(err)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM articles"))
	s.Equal(0, count)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_GetEmptyAndUpdate() {
	store := NewSyncStateStore(s.db)

	state, err := store.Get(s.ctx, "folder-1")
	s.Require().NoError(err)
	s.True(state.LastSyncedAt.IsZero())

	state.LastSyncedAt = time.Now().Truncate(time.Microsecond)
	state.TotalUpserted = 5
	state.TotalDeleted = 1
	s.Require().NoError(store.Update(s.ctx, state))

	reloaded, err := store.Get(s.ctx, "folder-1")
	s.Require().NoError(err)
	s.Equal(int64(5), reloaded.TotalUpserted)
	s.Equal(int64(1), reloaded.TotalDeleted)
}

func (s *PostgresIntegrationSuite) TestAvatarStore_GetObjectKeys() {
	store := NewAvatarStore(s.db)

	_, err := s.db.ExecContext(s.ctx,
		"INSERT INTO avatars (user_id, object_key) VALUES ($1, $2), ($3, $4)",
		"user-a", "avatars/a.png", "user-b", "avatars/b.png",
	)
	s.Require().NoError(err)

	keys, err := store.GetObjectKeys(s.ctx, []string{"user-a", "user-b", "user-c"})
	s.Require().NoError(err)
	s.Len(keys, 2)
	s.Equal("avatars/a.png", keys["user-a"])
	_, ok := keys["user-c"]
	s.False(ok)
}

func (s *PostgresIntegrationSuite) TestAvatarStore_GetObjectKeys_EmptyInput() {
	store := NewAvatarStore(s.db)

	keys, err := store.GetObjectKeys(s.ctx, nil)
	s.NoError(err)
	s.Empty(keys)
}
