package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"docs_syncer/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, folderID string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT id, folder_id, last_synced_at, total_upserted, total_deleted
		FROM sync_state
		WHERE folder_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, folderID)
	if errors.Is(err, sql.ErrNoRows) {
		// Empty state for folders that have never synced
		return &domain.SyncState{
			FolderID:     folderID,
			LastSyncedAt: time.Time{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (folder_id, last_synced_at, total_upserted, total_deleted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (folder_id) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			total_upserted = EXCLUDED.total_upserted,
			total_deleted = EXCLUDED.total_deleted`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.FolderID,
		state.LastSyncedAt,
		state.TotalUpserted,
		state.TotalDeleted,
	)
	return err
}
