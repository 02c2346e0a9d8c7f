package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// AvatarStore is the picture index: it maps user ids to object keys in
// avatar storage. At most one key exists per user.
type AvatarStore struct {
	db *sqlx.DB
}

func NewAvatarStore(db *sqlx.DB) *AvatarStore {
	return &AvatarStore{db: db}
}

// GetObjectKeys looks up object keys for all given user ids in one
// query. Users with no avatar are simply absent from the result.
func (s *AvatarStore) GetObjectKeys(ctx context.Context, userIDs []string) (map[string]string, error) {
	if len(userIDs) == 0 {
		return make(map[string]string), nil
	}

	query := `SELECT user_id, object_key FROM avatars WHERE user_id = ANY($1)`

	rows, err := GetExecutor(ctx, s.db).QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("get avatar keys: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var userID, objectKey string
		if err := rows.Scan(&userID, &objectKey); err != nil {
			return nil, err
		}
		result[userID] = objectKey
	}

	return result, rows.Err()
}
