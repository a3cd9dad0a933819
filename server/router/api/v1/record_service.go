package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/promptlens/promptlens/plugin/ai"
	"github.com/promptlens/promptlens/store"
)

// CreateRecordRequest is the wire shape of one ingested interaction.
type CreateRecordRequest struct {
	Owner        string   `json:"owner"`
	PromptText   string   `json:"promptText"`
	ResponseText string   `json:"responseText"`
	// Keywords overrides LLM extraction when provided.
	Keywords []string `json:"keywords,omitempty"`
	// CreatedAt defaults to now when omitted.
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// CreateRecordResponse returns the stored record's identity.
type CreateRecordResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Keywords  []string  `json:"keywords"`
}

// CreateRecord handles POST /api/v1/records. Keywords are extracted with the
// LLM when the caller does not supply them; embeddings are computed eagerly
// at ingest so queries rarely need backfill.
func (s *APIV1Service) CreateRecord(c echo.Context) error {
	var req CreateRecordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.PromptText == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "promptText is required"})
	}

	ctx := c.Request().Context()

	keywords := req.Keywords
	if len(keywords) == 0 {
		keywords = ai.ExtractKeywords(ctx, s.llm, req.PromptText)
	}

	record := &store.Record{
		ID:           uuid.New().String(),
		OwnerID:      req.Owner,
		PromptText:   req.PromptText,
		ResponseText: req.ResponseText,
		Keywords:     keywords,
		CreatedTs:    time.Now().Unix(),
	}
	if req.CreatedAt != nil {
		record.CreatedTs = req.CreatedAt.Unix()
	}

	// Embedding failures do not block ingest; the store backfills lazily on
	// the first query that selects this record.
	if embedding, err := s.embedder.Embed(ctx, req.PromptText); err == nil {
		record.PromptEmbedding = embedding
	} else {
		slog.Warn("prompt embedding at ingest failed, will backfill", "error", err)
	}
	if req.ResponseText != "" {
		if embedding, err := s.embedder.Embed(ctx, req.ResponseText); err == nil {
			record.ResponseEmbedding = embedding
		} else {
			slog.Warn("response embedding at ingest failed, will backfill", "error", err)
		}
	}

	if _, err := s.store.CreateRecord(ctx, record); err != nil {
		slog.Error("failed to create record", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create record"})
	}

	return c.JSON(http.StatusOK, CreateRecordResponse{
		ID:        record.ID,
		CreatedAt: time.Unix(record.CreatedTs, 0).UTC(),
		Keywords:  keywords,
	})
}
