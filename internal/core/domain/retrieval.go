package domain

// Candidate is a chunk reference returned by one retrieval backend before
// fusion. FusedScore is only meaningful after rank fusion has run.
type Candidate struct {
	ChunkID      string  `json:"chunk_id"`
	VectorScore  float64 `json:"vector_score,omitempty"`
	LexicalScore float64 `json:"lexical_score,omitempty"`
	FusedScore   float64 `json:"fused_score"`
}

// Chunk is a fully resolved passage with its parent document metadata.
// Resolved chunks are immutable for the lifetime of a request.
type Chunk struct {
	ID         string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	ChunkIndex int     `json:"chunk_index"`
	Locator    string  `json:"locator,omitempty"`
	FileName   string  `json:"file_name"`
	Link       string  `json:"link,omitempty"`
	MimeType   string  `json:"mime_type,omitempty"`
	Score      float64 `json:"score"`
}

// DocumentAggregate groups the matched chunks of one document.
// BestScore is the maximum fused score among MatchedChunks.
type DocumentAggregate struct {
	DocumentID    string  `json:"document_id"`
	FileName      string  `json:"file_name"`
	Link          string  `json:"link,omitempty"`
	BestScore     float64 `json:"best_score"`
	MatchedChunks []Chunk `json:"matched_chunks"`
}

// Source is the citation form of a chunk in API responses.
// Snippet is the first 200 characters of the chunk text, with a trailing
// ellipsis marker when truncated.
type Source struct {
	FileName string `json:"file_name"`
	Link     string `json:"link"`
	Locator  string `json:"locator"`
	ChunkID  string `json:"chunk_id"`
	Snippet  string `json:"snippet"`
}

// Answer is the single-pass ask result.
type Answer struct {
	Text      string   `json:"answer"`
	Sources   []Source `json:"sources"`
	LatencyMS int64    `json:"latency_ms"`
}

const snippetLength = 200

// SourceFromChunk builds the citation view of a chunk.
func SourceFromChunk(c Chunk) Source {
	snippet := c.Text
	if runes := []rune(snippet); len(runes) > snippetLength {
		snippet = string(runes[:snippetLength]) + "..."
	}
	locator := c.Locator
	if locator == "" {
		locator = "N/A"
	}
	return Source{
		FileName: c.FileName,
		Link:     c.Link,
		Locator:  locator,
		ChunkID:  c.ID,
		Snippet:  snippet,
	}
}
