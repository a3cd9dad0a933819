package store

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// backfillConcurrency bounds how many embedding computations run at once
// during a single backfill pass.
const backfillConcurrency = 4

// Embedder computes fixed-dimension vectors for text. Satisfied by
// plugin/ai.EmbeddingService.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// BackfillEmbeddings computes and persists the missing embedding of the given
// field for each record that has non-empty text in that field. Records that
// already carry the embedding are never re-embedded. In-memory records are
// mutated so downstream consumers see the filled value immediately.
func (s *Store) BackfillEmbeddings(ctx context.Context, records []*Record, field Field, embedder Embedder) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(backfillConcurrency)

	for _, record := range records {
		if record.Embedding(field) != nil {
			continue
		}
		if strings.TrimSpace(record.Text(field)) == "" {
			continue
		}

		record := record
		group.Go(func() error {
			lock := s.recordLock(record.ID)
			lock.Lock()
			defer lock.Unlock()

			// Another backfill may have filled it while we waited. The
			// in-memory record is per-query, so re-read the stored row: an
			// overlapping query may have persisted the embedding already.
			if record.Embedding(field) != nil {
				return nil
			}
			if stored := s.storedEmbedding(groupCtx, record.ID, field); stored != nil {
				record.SetEmbedding(field, stored)
				return nil
			}

			embedding, err := embedder.Embed(groupCtx, record.Text(field))
			if err != nil {
				return err
			}

			if err := s.driver.UpdateRecordEmbedding(groupCtx, &UpdateRecordEmbedding{
				ID:        record.ID,
				Field:     field,
				Embedding: embedding,
			}); err != nil {
				return err
			}

			record.SetEmbedding(field, embedding)
			slog.Debug("backfilled record embedding",
				"record_id", record.ID,
				"field", string(field))
			return nil
		})
	}

	return group.Wait()
}

// storedEmbedding reads one record's persisted embedding for the field.
// Read failures return nil: the caller embeds anyway and surfaces any real
// store problem on its own write.
func (s *Store) storedEmbedding(ctx context.Context, id string, field Field) []float32 {
	records, err := s.driver.ListRecords(ctx, &FindRecord{ID: &id, Field: &field, Limit: 1})
	if err != nil || len(records) != 1 {
		return nil
	}
	return records[0].Embedding(field)
}
