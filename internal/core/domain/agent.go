package domain

import "time"

// SearchIteration is one entry of an agent run log. The list is append-only
// and private to a single invocation.
type SearchIteration struct {
	Iteration   int      `json:"iteration"`
	Query       string   `json:"query"`
	NumResults  int      `json:"num_results"`
	Assessment  string   `json:"assessment"`
	Confidence  float64  `json:"confidence"`
	MissingInfo []string `json:"missing_info"`
}

// Assessment is the completeness judgment for one iteration. Heuristic marks
// the fallback path: the LLM response could not be parsed (or there were no
// sources) and the confidence was derived from the source count instead.
type Assessment struct {
	Text           string
	Confidence     float64
	MissingInfo    []string
	Heuristic      bool
	FallbackReason string
}

// AgentLimits bounds one iterative run. Every limit is a stop condition; the
// run terminates on whichever fires first.
type AgentLimits struct {
	MaxIterations       int           `json:"max_iterations"`
	ConfidenceThreshold float64       `json:"confidence_threshold"`
	MaxSources          int           `json:"max_sources"`
	InitialCandidates   int           `json:"initial_candidates"`
	Timeout             time.Duration `json:"timeout"`
}

// IterativeResult is the outcome of one iterative agent run.
type IterativeResult struct {
	Answer          string            `json:"answer"`
	Sources         []Source          `json:"sources"`
	Iterations      []SearchIteration `json:"iterations"`
	TotalSources    int               `json:"total_sources"`
	TotalIterations int               `json:"total_iterations"`
	FinalConfidence float64           `json:"final_confidence"`
	LatencyMS       int64             `json:"latency_ms"`
}

// SubQuestionResult is one research step: a decomposed sub-question, its
// short answer, and the chunk ids backing it.
type SubQuestionResult struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer"`
	SourceIDs []string `json:"source_ids"`
}

// ResearchResult is the outcome of the decompose/answer/synthesize pipeline.
type ResearchResult struct {
	Query           string              `json:"query"`
	Answer          string              `json:"answer"`
	ResearchSteps   []SubQuestionResult `json:"research_steps"`
	Sources         []Source            `json:"sources"`
	NumSubQuestions int                 `json:"num_sub_questions"`
	LatencyMS       int64               `json:"latency_ms"`
}
