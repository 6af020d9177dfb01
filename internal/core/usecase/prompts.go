package usecase

import (
	"fmt"
	"strings"

	"github.com/mkorhonen/drive-rag/internal/core/domain"
)

// answerSystemPrompt grounds single-pass answers strictly in the retrieved
// context and forces bracketed file citations.
const answerSystemPrompt = `You are a RAG assistant for a private document corpus. Answer only from the supplied context.

IMPORTANT RULES:
1. If the answer is not present in the context, say "I could not find a reliable answer in the provided material."
2. ALWAYS cite sources in the form: [FileName] (link, page/heading)
3. Do NOT invent links or content
4. Use only the supplied documents in your answer
5. If something is unclear, say so honestly

CONTEXT:
%s

Answer the question professionally.`

const multiQueryPrompt = `Write 3-5 search queries that differ from each other in meaning and would
help find content relevant to the question: "%s".

Return only the queries, one per line, without numbering or any other text.`

const hydePrompt = `Write a concise hypothetical answer to the question "%s".
It will be used as a pseudo-document to guide retrieval.

Answer:`

func buildAnswerContext(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, chunk := range chunks {
		sourceInfo := fmt.Sprintf("[%s]", chunk.FileName)
		if chunk.Locator != "" {
			sourceInfo += fmt.Sprintf(" (%s)", chunk.Locator)
		}
		fmt.Fprintf(&b, "DOCUMENT: %s %s\n%s\n\n", chunk.FileName, sourceInfo, chunk.Text)
	}
	return b.String()
}

func buildAssessmentPrompt(query string, sources []domain.Chunk) string {
	shown := sources
	if len(shown) > assessmentContextSources {
		shown = shown[:assessmentContextSources]
	}

	var context strings.Builder
	for i, src := range shown {
		text := src.Text
		if runes := []rune(text); len(runes) > 200 {
			text = string(runes[:200])
		}
		fmt.Fprintf(&context, "[Source %d] %s: %s\n\n", i+1, src.FileName, text)
	}

	return fmt.Sprintf(`Assess whether these sources can answer the question comprehensively.

Original question: %s

Found sources (%d total):
%s
Analyze:
1. Can the question be answered from these sources?
2. What information might be missing?
3. How confident are you that the answer is complete? (0-100%%)

Respond as JSON:
{
    "can_answer": true/false,
    "confidence": 0-100,
    "missing_info": ["missing item 1", "missing item 2"],
    "reasoning": "short justification"
}

Return ONLY the JSON:`, query, len(sources), context.String())
}

// buildComprehensiveAnswerPrompts returns the system and user prompts for
// the iterative controller's final synthesis. Citations use bracket-numbered
// source references, unlike the research pipeline's inline file names.
func buildComprehensiveAnswerPrompts(query string, sources []domain.Chunk, iterations []domain.SearchIteration) (system, user string) {
	var context strings.Builder
	for i, src := range sources {
		locator := src.Locator
		if locator == "" {
			locator = "N/A"
		}
		fmt.Fprintf(&context, "[Source %d: %s, %s]\n%s\n\n", i+1, src.FileName, locator, src.Text)
	}

	system = fmt.Sprintf(`You are an expert analyst producing comprehensive reports.

You have completed %d search rounds and found %d relevant sources.

IMPORTANT INSTRUCTIONS:
1. Answer COMPREHENSIVELY using ALL relevant sources
2. Do not leave out any important information - go through every source
3. Mention ALL distinct dates, people, events and so on
4. Group the information logically (for example chronologically or by theme)
5. Add source references directly in the text: "...according to (File.pdf, page 5)..."
6. If some information is missing, say so clearly
7. If there is a lot of information, use subheadings and lists

SOURCES (%d total):
%s
Give an EXTREMELY COMPREHENSIVE and DETAILED answer.`, len(iterations), len(sources), len(sources), context.String())

	user = fmt.Sprintf(`QUESTION: %s

Give a comprehensive, well-structured answer that covers ALL relevant information from the sources.

ANSWER:`, query)
	return system, user
}

func buildDecomposePrompt(query string) string {
	return fmt.Sprintf(`You are a research assistant. Analyze the following question and break it into
3-5 focused sub-questions which, once answered, give a comprehensive answer to the original question.

Original question: %s

Respond as JSON:
{"sub_questions": ["question1", "question2", "question3"]}

Return ONLY the JSON, no other text.`, query)
}

func buildSubAnswerPrompt(question, context string) string {
	return fmt.Sprintf(`Answer the following question using the given context. Be precise and concise.

Context:
%s

Question: %s

Answer (2-4 sentences):`, context, question)
}

// buildSynthesisPrompt asks for inline file-name citations in parentheses
// rather than bracket-numbered references.
func buildSynthesisPrompt(query, researchContext string) string {
	return fmt.Sprintf(`You are a researcher synthesizing findings into a comprehensive report.

Original research question: %s

Research findings from sub-questions:
%s

Write a comprehensive, well-structured synthesis that:
1. Directly answers the original research question
2. Integrates all relevant information from the sub-answers into one coherent whole
3. Is clear, logically ordered and easy to read
4. Uses subheadings where helpful
5. Cites sources INLINE IN THE TEXT in the form: "...according to (FileName.pdf)..."
   - Do NOT use bracketed [] references, only the file name in parentheses
   - Mention the source next to the statement it supports

Synthesis:`, query, researchContext)
}
