package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")

	// Retrieval pipeline kinds. Each one has a documented degraded-output
	// path inside the pipeline and must not cross the usecase boundary.
	ErrRetrievalBackend = errors.New("retrieval backend failure")
	ErrResolve          = errors.New("chunk resolve failure")
	ErrRerank           = errors.New("rerank failure")
	ErrAssessmentParse  = errors.New("assessment parse failure")
	ErrGeneration       = errors.New("generation failure")
	ErrNoResults        = errors.New("no results")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
