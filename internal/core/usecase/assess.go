package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

// assessmentContextSources caps how many top-ranked sources are shown to the
// judgment prompt.
const assessmentContextSources = 15

// CompletenessAssessor turns a (query, ranked sources) pair into a
// structured judgment of whether the sources can answer the query. The LLM
// is asked for a single JSON object; anything unparseable degrades to a
// source-count heuristic instead of an error.
type CompletenessAssessor struct {
	generator ports.Generator
}

func NewCompletenessAssessor(generator ports.Generator) *CompletenessAssessor {
	return &CompletenessAssessor{generator: generator}
}

type assessmentJSON struct {
	CanAnswer   bool     `json:"can_answer"`
	Confidence  float64  `json:"confidence"`
	MissingInfo []string `json:"missing_info"`
	Reasoning   string   `json:"reasoning"`
}

// Assess returns a judgment whose Confidence is always in [0,1]. Heuristic
// is set when the fallback path produced the result.
func (a *CompletenessAssessor) Assess(ctx context.Context, query string, sources []domain.Chunk, iteration int) domain.Assessment {
	if len(sources) == 0 {
		return domain.Assessment{
			Text:           "no sources found",
			Confidence:     0.0,
			MissingInfo:    []string{},
			Heuristic:      true,
			FallbackReason: "empty source set",
		}
	}

	raw, err := a.generator.Complete(ctx, buildAssessmentPrompt(query, sources), 500, "")
	if err != nil {
		return a.heuristic(len(sources), domain.WrapError(domain.ErrGeneration, "assessment", err))
	}

	parsed, err := parseAssessmentJSON(raw)
	if err != nil {
		return a.heuristic(len(sources), domain.WrapError(domain.ErrAssessmentParse, "assessment", err))
	}

	missing := parsed.MissingInfo
	if missing == nil {
		missing = []string{}
	}
	text := strings.TrimSpace(parsed.Reasoning)
	if text == "" {
		text = "no reasoning given"
	}

	return domain.Assessment{
		Text:        text,
		Confidence:  clampFloat(parsed.Confidence/100.0, 0, 1),
		MissingInfo: missing,
	}
}

// heuristic is the degraded judgment: confidence grows with source count and
// saturates at 0.9, leaving the satisfied threshold reachable only through a
// real parsed judgment.
func (a *CompletenessAssessor) heuristic(sourceCount int, cause error) domain.Assessment {
	slog.Warn("assessment_heuristic_fallback", "error", cause, "sources", sourceCount)
	confidence := 0.5 + float64(sourceCount)/40.0
	if confidence > 0.9 {
		confidence = 0.9
	}
	return domain.Assessment{
		Text:           fmt.Sprintf("found %d sources", sourceCount),
		Confidence:     confidence,
		MissingInfo:    []string{},
		Heuristic:      true,
		FallbackReason: cause.Error(),
	}
}

// parseAssessmentJSON extracts the substring between the first '{' and the
// last '}' and parses only that as JSON.
func parseAssessmentJSON(raw string) (assessmentJSON, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return assessmentJSON{}, fmt.Errorf("no JSON object in response")
	}
	var parsed assessmentJSON
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return assessmentJSON{}, fmt.Errorf("unmarshal assessment: %w", err)
	}
	return parsed, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
