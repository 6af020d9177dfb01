package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkorhonen/drive-rag/internal/core/ports"
)

// broadeningTemplates rotate when the assessor gives no actionable gaps.
// Each one prepends an exhaustive/comprehensive qualifier so every round
// issues a different query even without a signal.
var broadeningTemplates = []string{
	"all information about %s",
	"comprehensive report on %s",
	"broad search for %s",
	"different perspectives on %s",
}

// QueryRefiner produces the next search query for the iterative controller:
// a gap-filling follow-up when the assessor named missing information, or a
// rotating broadened form of the original query otherwise.
type QueryRefiner struct {
	generator ports.Generator
}

func NewQueryRefiner(generator ports.Generator) *QueryRefiner {
	return &QueryRefiner{generator: generator}
}

// Next returns the query for the following iteration. iteration is the
// 1-based number of the iteration that just completed.
func (r *QueryRefiner) Next(ctx context.Context, originalQuery string, missingInfo []string, iteration int) string {
	if len(missingInfo) == 0 {
		return broadenQuery(originalQuery, iteration)
	}
	return r.followupQuery(ctx, originalQuery, missingInfo)
}

func (r *QueryRefiner) followupQuery(ctx context.Context, originalQuery string, missingInfo []string) string {
	top := missingInfo
	if len(top) > 3 {
		top = top[:3]
	}

	prompt := fmt.Sprintf(`Create a new search query to find the missing information.

Original question: %s

Missing information: %s

Create a precise search query that would find this missing information.
Return ONLY the search query, no other text:`, originalQuery, strings.Join(top, ", "))

	refined, err := r.generator.Complete(ctx, prompt, 100, "")
	if err != nil {
		slog.Warn("refine_followup_fallback", "error", err)
		return originalQuery + " " + missingInfo[0]
	}
	refined = strings.Trim(strings.TrimSpace(refined), `"'`)
	if refined == "" {
		return originalQuery + " " + missingInfo[0]
	}
	return refined
}

func broadenQuery(originalQuery string, iteration int) string {
	idx := (iteration - 1) % len(broadeningTemplates)
	if idx < 0 {
		idx = 0
	}
	return fmt.Sprintf(broadeningTemplates[idx], originalQuery)
}
