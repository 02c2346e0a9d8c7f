package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"docs_syncer/internal/domain"
)

// Source lists and exports documents from the remote document-management API.
type Source interface {
	ListDocuments(ctx context.Context, folderID string) ([]domain.RemoteDocument, error)
	ExportDocument(ctx context.Context, externalID string) (string, error)
}

// ArticleStore is the gateway to the persisted article collection.
type ArticleStore interface {
	ListAll(ctx context.Context) ([]domain.Article, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Article, error)
	UpsertMany(ctx context.Context, drafts []domain.ArticleDraft) (int, error)
	DeleteByExternalID(ctx context.Context, externalID string) (bool, error)
}

type SyncStateStore interface {
	Get(ctx context.Context, folderID string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher emits article change events for downstream consumers.
type Publisher interface {
	PublishUpserted(ctx context.Context, draft *domain.ArticleDraft) error
	PublishDeleted(ctx context.Context, externalID string) error
	Close() error
}

// AvatarIndex maps user ids to object keys in avatar storage.
type AvatarIndex interface {
	GetObjectKeys(ctx context.Context, userIDs []string) (map[string]string, error)
}

// ObjectStorage mints signed URLs for private objects, with a public
// URL fallback.
type ObjectStorage interface {
	SignedURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
	PublicURL(objectKey string) string
}
