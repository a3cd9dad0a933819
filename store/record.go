package store

// Field identifies which text column of a record a query runs against.
type Field string

const (
	// FieldPrompt searches the prompt text of each record.
	FieldPrompt Field = "prompt"
	// FieldResponse searches the response text of each record.
	FieldResponse Field = "response"
)

// IsValid reports whether the field is a known search field.
func (f Field) IsValid() bool {
	return f == FieldPrompt || f == FieldResponse
}

// Record represents one recorded text interaction.
type Record struct {
	ID      string
	OwnerID string

	PromptText   string
	ResponseText string

	// Embeddings are lazily computed. A nil slice means not yet embedded;
	// present embeddings always have the store-wide dimension.
	PromptEmbedding   []float32
	ResponseEmbedding []float32

	// Keywords is the parsed free-form tag list. May contain duplicates
	// within one record.
	Keywords []string
	// RawKeywords is the keyword column as stored, before parsing.
	RawKeywords string

	CreatedTs int64
}

// Text returns the record's text for the given search field.
func (r *Record) Text(field Field) string {
	if field == FieldResponse {
		return r.ResponseText
	}
	return r.PromptText
}

// Embedding returns the record's embedding for the given search field.
func (r *Record) Embedding(field Field) []float32 {
	if field == FieldResponse {
		return r.ResponseEmbedding
	}
	return r.PromptEmbedding
}

// SetEmbedding sets the record's embedding for the given search field.
func (r *Record) SetEmbedding(field Field, embedding []float32) {
	if field == FieldResponse {
		r.ResponseEmbedding = embedding
		return
	}
	r.PromptEmbedding = embedding
}

// FindRecord is the find condition for records.
type FindRecord struct {
	ID  *string
	IDs []string

	OwnerID *string

	// CreatedSince and CreatedUntil bound created_ts (inclusive since,
	// exclusive until), both optional.
	CreatedSince *int64
	CreatedUntil *int64

	// Field narrows column selection to one text field and its embedding.
	// When nil, both text fields and both embeddings are selected.
	Field *Field

	// ExcludeContent drops all text and embedding columns from the selection,
	// leaving only id, owner, keywords, and timestamps. Used by scans that
	// read nothing but keywords.
	ExcludeContent bool

	// Limit caps the number of returned records. Zero means driver default.
	Limit int
}

// UpdateRecordEmbedding is the update condition for backfilling one embedding.
type UpdateRecordEmbedding struct {
	ID        string
	Field     Field
	Embedding []float32
}
