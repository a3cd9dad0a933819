package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/promptlens/promptlens/store"
)

// CreateRecord inserts a new record.
func (d *DB) CreateRecord(ctx context.Context, create *store.Record) (*store.Record, error) {
	stmt := `
		INSERT INTO record (id, owner_id, prompt_text, response_text, prompt_embedding, response_embedding, keywords, created_ts)
		VALUES (` + placeholders(8) + `)
	`

	_, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.OwnerID,
		create.PromptText,
		create.ResponseText,
		encodeVector(create.PromptEmbedding),
		encodeVector(create.ResponseEmbedding),
		encodeKeywords(create.Keywords),
		create.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create record")
	}
	return create, nil
}

// ListRecords lists records ordered by creation time ascending. When
// find.Field is set, only that text column and its embedding are selected.
func (d *DB) ListRecords(ctx context.Context, find *store.FindRecord) ([]*store.Record, error) {
	promptCols := "prompt_text, prompt_embedding"
	responseCols := "response_text, response_embedding"
	if find.ExcludeContent {
		promptCols, responseCols = "'', NULL", "'', NULL"
	} else if find.Field != nil {
		if *find.Field == store.FieldPrompt {
			responseCols = "'', NULL"
		} else {
			promptCols = "'', NULL"
		}
	}

	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(find.IDs)), ", ")
		where = append(where, "id IN ("+marks+")")
		for _, id := range find.IDs {
			args = append(args, id)
		}
	}
	if find.OwnerID != nil {
		where, args = append(where, "owner_id = ?"), append(args, *find.OwnerID)
	}
	if find.CreatedSince != nil {
		where, args = append(where, "created_ts >= ?"), append(args, *find.CreatedSince)
	}
	if find.CreatedUntil != nil {
		where, args = append(where, "created_ts < ?"), append(args, *find.CreatedUntil)
	}

	query := `
		SELECT id, owner_id, ` + promptCols + `, ` + responseCols + `, keywords, created_ts
		FROM record
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC
	`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list records")
	}
	defer rows.Close()

	list := []*store.Record{}
	for rows.Next() {
		var record store.Record
		var promptVec, responseVec sql.NullString
		var rawKeywords string
		err := rows.Scan(
			&record.ID,
			&record.OwnerID,
			&record.PromptText,
			&promptVec,
			&record.ResponseText,
			&responseVec,
			&rawKeywords,
			&record.CreatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan record")
		}

		if record.PromptEmbedding, err = decodeVector(promptVec); err != nil {
			return nil, errors.Wrapf(err, "record %s: bad prompt embedding", record.ID)
		}
		if record.ResponseEmbedding, err = decodeVector(responseVec); err != nil {
			return nil, errors.Wrapf(err, "record %s: bad response embedding", record.ID)
		}
		record.RawKeywords = rawKeywords
		record.Keywords, _ = store.ParseKeywords(rawKeywords)

		list = append(list, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateRecordEmbedding persists a backfilled embedding for one record.
func (d *DB) UpdateRecordEmbedding(ctx context.Context, update *store.UpdateRecordEmbedding) error {
	column := "prompt_embedding"
	if update.Field == store.FieldResponse {
		column = "response_embedding"
	}

	stmt := `UPDATE record SET ` + column + ` = ? WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, encodeVector(update.Embedding), update.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update record embedding")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Errorf("record %s not found", update.ID)
	}
	return nil
}

// encodeVector serializes an embedding as JSON, or NULL when absent.
func encodeVector(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil
	}
	return string(data)
}

// decodeVector parses a JSON-encoded embedding column.
func decodeVector(value sql.NullString) ([]float32, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(value.String), &embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}

// encodeKeywords renders a keyword list as its stored JSON array form.
func encodeKeywords(keywords []string) string {
	if len(keywords) == 0 {
		return "[]"
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "[]"
	}
	return string(data)
}
