package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AvatarService resolves per-user avatar URLs: it looks up object keys
// in the picture index and mints time-limited signed URLs, falling back
// to public URLs when signing fails.
type AvatarService struct {
	index       AvatarIndex
	storage     ObjectStorage
	urlTTL      time.Duration
	concurrency int
	logger      *slog.Logger
}

func NewAvatarService(
	index AvatarIndex,
	storage ObjectStorage,
	urlTTL time.Duration,
	concurrency int,
	logger *slog.Logger,
) *AvatarService {
	if urlTTL <= 0 {
		urlTTL = 7 * 24 * time.Hour
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &AvatarService{
		index:       index,
		storage:     storage,
		urlTTL:      urlTTL,
		concurrency: concurrency,
		logger:      logger.With("component", "avatar_service"),
	}
}

// ResolveAvatars maps every given user id to an avatar URL or nil.
// Every input id is present in the result; nil means no avatar is
// resolvable. A failure on one id never affects the others. Empty input
// returns an empty map without touching any collaborator.
func (s *AvatarService) ResolveAvatars(ctx context.Context, userIDs []string) (map[string]*string, error) {
	result := make(map[string]*string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys, err := s.index.GetObjectKeys(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("look up avatar keys: %w", err)
	}

	for _, id := range userIDs {
		result[id] = nil
	}

	type resolved struct {
		userID string
		url    *string
	}

	jobs := make(chan string)
	out := make(chan resolved, len(keys))

	workers := s.concurrency
	if workers > len(keys) {
		workers = len(keys)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				out <- resolved{userID: userID, url: s.resolveOne(ctx, userID, keys[userID])}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, id := range userIDs {
			if _, ok := keys[id]; !ok {
				continue
			}
			jobs <- id
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	for r := range out {
		result[r.userID] = r.url
	}

	return result, nil
}

func (s *AvatarService) resolveOne(ctx context.Context, userID, objectKey string) *string {
	signed, err := s.storage.SignedURL(ctx, objectKey, s.urlTTL)
	if err == nil {
		return &signed
	}

	s.logger.Warn("signed URL minting failed, falling back to public URL",
		"user_id", userID,
		"object_key", objectKey,
		"error", err,
	)

	if public := s.storage.PublicURL(objectKey); public != "" {
		return &public
	}
	return nil
}
