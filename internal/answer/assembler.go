package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/docassist/docassist/internal/retrieval"
	"github.com/docassist/docassist/internal/store"
)

// Refusal is the fixed reply when the gate found nothing relevant. The model
// is never called in that case.
const Refusal = "I can’t find relevant info in the currently selected document."

// promptTemplate grounds the model in the retrieved chunks only and pins the
// refusal wording so it matches the gate's refusal verbatim.
const promptTemplate = `You are a technical documentation assistant.
You must answer ONLY from the provided CONTEXT.
If the context does not contain strictly enough information, you may attempt to answer using the context provided, but note your limitations.
If it is completely unrelated, then you must categorically refuse to answer by responding exactly: "I can’t find relevant info in the currently selected document."
You must cite the document title and page number for your evidence.

Response Format Guidelines:
- Commands / Steps: (List actionable steps if any)
- Explanation: (Short explanation)
- Evidence: (Quoted snippet <= 25 words under the citation: ` + "`[Source: {doc_title} | Page {page_number}]`" + `)

Context:
%s

Question: %s

Answer:`

// Citation points at one chunk that supported the answer.
type Citation struct {
	DocTitle string
	Page     int
	Distance float32
}

// Answer is the final response to one question.
type Answer struct {
	Text      string
	Outcome   retrieval.Outcome
	Citations []Citation
}

// Assembler builds prompts from accepted chunks and produces answers.
type Assembler struct {
	gen Generator
}

// NewAssembler creates an assembler using the given generator.
func NewAssembler(gen Generator) *Assembler {
	return &Assembler{gen: gen}
}

// Answer produces the final answer for a gated retrieval. Refusals return
// the fixed refusal text without touching the generator.
func (a *Assembler) Answer(ctx context.Context, question string, decision retrieval.Decision) (Answer, error) {
	if decision.Outcome == retrieval.OutcomeRefused {
		return Answer{Text: Refusal, Outcome: decision.Outcome}, nil
	}

	prompt := BuildPrompt(question, decision.Accepted)
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	citations := make([]Citation, len(decision.Accepted))
	for i, r := range decision.Accepted {
		citations[i] = Citation{
			DocTitle: r.Chunk.DocTitle,
			Page:     r.Chunk.PageNumber,
			Distance: r.Distance,
		}
	}

	return Answer{
		Text:      strings.TrimSpace(text),
		Outcome:   decision.Outcome,
		Citations: citations,
	}, nil
}

// BuildPrompt renders the grounding prompt for the accepted chunks, in
// retrieval order. Each chunk gets a document/page header so the model can
// cite its evidence.
func BuildPrompt(question string, accepted []store.Result) string {
	parts := make([]string, len(accepted))
	for i, r := range accepted {
		parts[i] = fmt.Sprintf("--- Document: %s | Page %d ---\n%s\n", r.Chunk.DocTitle, r.Chunk.PageNumber, r.Chunk.Text)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n"), question)
}
