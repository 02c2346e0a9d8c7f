package domain

import "time"

// RemoteDocument is a document as listed by the remote source.
// Rebuilt from the source on every sync run, never persisted.
type RemoteDocument struct {
	ExternalID   string
	Name         string
	ModifiedTime time.Time
}

// Article is a published document persisted in the store.
// Exactly one row exists per live external id; slug is unique.
type Article struct {
	ID          int64     `db:"id"`
	Slug        string    `db:"slug"`
	Title       string    `db:"title"`
	Content     string    `db:"content"`
	ExternalID  string    `db:"external_id"`
	LastUpdated time.Time `db:"last_updated"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// ArticleDraft is the write shape handed to the store. Upsert key is ExternalID.
type ArticleDraft struct {
	Slug        string
	Title       string
	Content     string
	ExternalID  string
	LastUpdated time.Time
}

// AvatarEntry maps a user to an object key in avatar storage.
// At most one entry exists per user.
type AvatarEntry struct {
	UserID    string `db:"user_id"`
	ObjectKey string `db:"object_key"`
}

type SyncState struct {
	ID            int64     `db:"id"`
	FolderID      string    `db:"folder_id"`
	LastSyncedAt  time.Time `db:"last_synced_at"`
	TotalUpserted int64     `db:"total_upserted"`
	TotalDeleted  int64     `db:"total_deleted"`
}
