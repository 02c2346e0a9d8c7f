package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"docs_syncer/internal/config"
	"docs_syncer/internal/domain"
	"docs_syncer/internal/slug"
)

// SyncService reconciles the remote document folder against the local
// article store: it lists the folder, exports and normalizes each
// document, diffs against the stored set, and applies deletes and
// upserts in one transaction.
type SyncService struct {
	source    Source
	articles  ArticleStore
	syncState SyncStateStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
	folderID  string
	config    config.SyncConfig

	// runMu serializes runs: a scheduler tick and a manual trigger must
	// never reconcile the same folder concurrently.
	runMu sync.Mutex
}

func NewSyncService(
	source Source,
	articles ArticleStore,
	syncState SyncStateStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
	folderID string,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		source:    source,
		articles:  articles,
		syncState: syncState,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("folder", folderID),
		folderID:  folderID,
		config:    cfg,
	}
}

// Sync runs one reconciliation pass. A listing failure aborts the run
// before anything is applied. Per-document export and validation
// failures are recorded in the returned stats and do not abort the run.
// Cancelling ctx during the fetch phase stops issuing new exports and
// aborts the run without applying anything.
func (s *SyncService) Sync(ctx context.Context) (*domain.SyncStats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	startTime := time.Now()
	s.logger.Info("starting sync", "fetch_concurrency", s.config.FetchConcurrency)

	docs, err := s.source.ListDocuments(ctx, s.folderID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	stats := &domain.SyncStats{
		FolderID: s.folderID,
		Listed:   len(docs),
	}

	drafts, itemErrors := s.fetchAll(ctx, docs)
	stats.Errors = itemErrors

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sync cancelled during fetch: %w", err)
	}

	stored, err := s.articles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored articles: %w", err)
	}

	// A document whose export failed is still in the listed set and must
	// not be deleted; only ids absent from the listing are stale.
	listed := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		listed[doc.ExternalID] = struct{}{}
	}

	var toDelete []string
	for _, article := range stored {
		if _, ok := listed[article.ExternalID]; !ok {
			toDelete = append(toDelete, article.ExternalID)
		}
	}

	// Slugs held by rows that survive this run but are not in the batch
	// (their export failed) are off-limits to renamed documents, or the
	// upsert would trip the slug unique constraint and abort the run.
	inBatch := make(map[string]struct{}, len(drafts))
	for _, draft := range drafts {
		inBatch[draft.ExternalID] = struct{}{}
	}
	reserved := make(map[string]struct{})
	for _, article := range stored {
		if _, ok := listed[article.ExternalID]; !ok {
			continue
		}
		if _, ok := inBatch[article.ExternalID]; ok {
			continue
		}
		reserved[article.Slug] = struct{}{}
	}
	drafts = resolveSlugCollisions(drafts, reserved)

	s.logger.Info("computed plan",
		"listed", len(docs),
		"to_upsert", len(drafts),
		"to_delete", len(toDelete),
		"item_errors", len(stats.Errors),
	)

	// Delete-before-upsert avoids transient slug collisions between a
	// renamed document and a stale row holding the old slug. The whole
	// batch applies in one transaction or not at all.
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, externalID := range toDelete {
			found, err := s.articles.DeleteByExternalID(txCtx, externalID)
			if err != nil {
				return fmt.Errorf("delete article %s: %w", externalID, err)
			}
			if found {
				stats.Deleted++
			}
		}

		written, err := s.articles.UpsertMany(txCtx, drafts)
		if err != nil {
			return fmt.Errorf("upsert articles: %w", err)
		}
		stats.Upserted = written
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("apply changes: %w", err)
	}

	s.publishEvents(ctx, drafts, toDelete)

	if err := s.updateSyncState(ctx, stats); err != nil {
		return stats, fmt.Errorf("update sync state: %w", err)
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("sync completed",
		"listed", stats.Listed,
		"upserted", stats.Upserted,
		"deleted", stats.Deleted,
		"errors", len(stats.Errors),
		"duration", stats.Duration,
	)

	return stats, nil
}

type fetchResult struct {
	index   int
	draft   domain.ArticleDraft
	itemErr *domain.ItemError
}

// fetchAll exports all listed documents with a bounded worker pool and
// returns the successful drafts in listing order plus per-item errors.
func (s *SyncService) fetchAll(ctx context.Context, docs []domain.RemoteDocument) ([]domain.ArticleDraft, []domain.ItemError) {
	if len(docs) == 0 {
		return nil, nil
	}

	workers := s.config.FetchConcurrency
	if workers <= 0 {
		workers = 1
	}
	if workers > len(docs) {
		workers = len(docs)
	}

	jobs := make(chan int)
	results := make(chan fetchResult, len(docs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- s.fetchOne(ctx, i, docs[i])
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range docs {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]fetchResult, 0, len(docs))
	for res := range results {
		collected = append(collected, res)
	}
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})

	var drafts []domain.ArticleDraft
	var itemErrors []domain.ItemError
	for _, res := range collected {
		if res.itemErr != nil {
			itemErrors = append(itemErrors, *res.itemErr)
			continue
		}
		drafts = append(drafts, res.draft)
	}

	return drafts, itemErrors
}

func (s *SyncService) fetchOne(ctx context.Context, index int, doc domain.RemoteDocument) fetchResult {
	content, err := s.source.ExportDocument(ctx, doc.ExternalID)
	if err != nil {
		s.logger.Warn("export failed",
			"external_id", doc.ExternalID,
			"name", doc.Name,
			"error", err,
		)
		return fetchResult{index: index, itemErr: &domain.ItemError{
			ExternalID: doc.ExternalID,
			Reason:     err.Error(),
		}}
	}

	docSlug := slug.Slugify(doc.Name)
	if docSlug == "" {
		s.logger.Warn("document title produced an empty slug",
			"external_id", doc.ExternalID,
			"name", doc.Name,
		)
		return fetchResult{index: index, itemErr: &domain.ItemError{
			ExternalID: doc.ExternalID,
			Reason:     fmt.Sprintf("title %q produced an empty slug", doc.Name),
		}}
	}

	return fetchResult{index: index, draft: domain.ArticleDraft{
		Slug:        docSlug,
		Title:       doc.Name,
		Content:     slug.Normalize(content),
		ExternalID:  doc.ExternalID,
		LastUpdated: doc.ModifiedTime,
	}}
}

// resolveSlugCollisions keeps the base slug for the first document and
// gives later ones a stable suffix derived from their external id, so
// slugs do not flap between runs. Reserved slugs belong to stored rows
// that stay live outside the batch and count as taken from the start.
func resolveSlugCollisions(drafts []domain.ArticleDraft, reserved map[string]struct{}) []domain.ArticleDraft {
	seen := make(map[string]struct{}, len(drafts)+len(reserved))
	for taken := range reserved {
		seen[taken] = struct{}{}
	}
	for i := range drafts {
		if _, taken := seen[drafts[i].Slug]; taken {
			drafts[i].Slug = slug.WithSuffix(drafts[i].Slug, drafts[i].ExternalID)
		}
		seen[drafts[i].Slug] = struct{}{}
	}
	return drafts
}

// publishEvents is best-effort: the store is already consistent, so a
// broker hiccup only costs downstream notifications.
func (s *SyncService) publishEvents(ctx context.Context, drafts []domain.ArticleDraft, deleted []string) {
	if s.publisher == nil {
		return
	}

	for i := range drafts {
		if err := s.publisher.PublishUpserted(ctx, &drafts[i]); err != nil {
			s.logger.Warn("publish upsert event failed",
				"external_id", drafts[i].ExternalID,
				"error", err,
			)
		}
	}
	for _, externalID := range deleted {
		if err := s.publisher.PublishDeleted(ctx, externalID); err != nil {
			s.logger.Warn("publish delete event failed",
				"external_id", externalID,
				"error", err,
			)
		}
	}
}

func (s *SyncService) updateSyncState(ctx context.Context, stats *domain.SyncStats) error {
	state, err := s.syncState.Get(ctx, s.folderID)
	if err != nil {
		return err
	}

	state.FolderID = s.folderID
	state.LastSyncedAt = time.Now()
	state.TotalUpserted += int64(stats.Upserted)
	state.TotalDeleted += int64(stats.Deleted)

	return s.syncState.Update(ctx, state)
}
