package chunking

import "strings"

// Splitter cuts text into overlapping windows, preferring to end a chunk at
// a sentence boundary when one falls inside the tail of the window.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = adjustToSentenceEnd(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}

// adjustToSentenceEnd pulls the cut position back to the last sentence
// terminator in the final fifth of the window, if there is one.
func adjustToSentenceEnd(runes []rune, start, end int) int {
	limit := end - (end-start)/5
	for i := end - 1; i > limit; i-- {
		switch runes[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return end
}
