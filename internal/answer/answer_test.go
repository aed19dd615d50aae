package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docassist/docassist/internal/document"
	"github.com/docassist/docassist/internal/retrieval"
	"github.com/docassist/docassist/internal/store"
)

// scriptedGenerator records the prompt and returns a canned completion.
type scriptedGenerator struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompt = prompt
	return g.reply, g.err
}

func acceptedResult(title, text string, page int, distance float32) store.Result {
	return store.Result{
		Chunk:    document.Chunk{DocTitle: title, Text: text, PageNumber: page},
		Distance: distance,
	}
}

func TestAnswer_RefusalSkipsGenerator(t *testing.T) {
	gen := &scriptedGenerator{reply: "should never appear"}
	a := NewAssembler(gen)

	ans, err := a.Answer(context.Background(), "irrelevant question",
		retrieval.Decision{Outcome: retrieval.OutcomeRefused})
	require.NoError(t, err)

	assert.Equal(t, Refusal, ans.Text)
	assert.Equal(t, retrieval.OutcomeRefused, ans.Outcome)
	assert.Empty(t, ans.Citations)
	assert.Zero(t, gen.calls)
}

func TestAnswer_PromptContainsChunksAndQuestion(t *testing.T) {
	gen := &scriptedGenerator{reply: "Restart it with systemctl."}
	a := NewAssembler(gen)

	decision := retrieval.Decision{
		Outcome: retrieval.OutcomeRelevant,
		Accepted: []store.Result{
			acceptedResult("runbook.pdf", "systemctl restart nginx", 0, 0.3),
			acceptedResult("runbook.pdf", "check logs afterwards", 1, 0.5),
		},
	}

	ans, err := a.Answer(context.Background(), "how do I restart nginx?", decision)
	require.NoError(t, err)

	assert.Contains(t, gen.prompt, "systemctl restart nginx")
	assert.Contains(t, gen.prompt, "check logs afterwards")
	assert.Contains(t, gen.prompt, "how do I restart nginx?")
	// Chunks appear in retrieval order
	assert.Less(t,
		strings.Index(gen.prompt, "systemctl restart nginx"),
		strings.Index(gen.prompt, "check logs afterwards"))

	assert.Equal(t, "Restart it with systemctl.", ans.Text)
	require.Len(t, ans.Citations, 2)
	assert.Equal(t, "runbook.pdf", ans.Citations[0].DocTitle)
	assert.Equal(t, 0, ans.Citations[0].Page)
}

func TestAnswer_FallbackUsesSingleChunk(t *testing.T) {
	gen := &scriptedGenerator{reply: "Possibly related."}
	a := NewAssembler(gen)

	decision := retrieval.Decision{
		Outcome:  retrieval.OutcomeFallback,
		Accepted: []store.Result{acceptedResult("doc.pdf", "nearest text", 2, 1.6)},
	}

	ans, err := a.Answer(context.Background(), "question", decision)
	require.NoError(t, err)

	assert.Equal(t, retrieval.OutcomeFallback, ans.Outcome)
	require.Len(t, ans.Citations, 1)
	assert.Equal(t, 2, ans.Citations[0].Page)
}

func TestAnswer_GeneratorErrorPropagates(t *testing.T) {
	gen := &scriptedGenerator{err: fmt.Errorf("ollama unreachable")}
	a := NewAssembler(gen)

	_, err := a.Answer(context.Background(), "question", retrieval.Decision{
		Outcome:  retrieval.OutcomeRelevant,
		Accepted: []store.Result{acceptedResult("doc.pdf", "text", 0, 0.1)},
	})
	assert.Error(t, err)
}

func TestBuildPrompt_ChunkHeaders(t *testing.T) {
	prompt := BuildPrompt("q", []store.Result{
		acceptedResult("guide.pdf", "content", 3, 0.2),
	})
	assert.Contains(t, prompt, "--- Document: guide.pdf | Page 3 ---\ncontent")
	assert.Contains(t, prompt, "Question: q")
}

func TestOllamaGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen2.5:7b", req.Model)
		assert.False(t, req.Stream)
		assert.Contains(t, req.Prompt, "the question")

		_ = json.NewEncoder(w).Encode(generateResponse{Response: "the answer", Done: true})
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "", 0)
	out, err := g.Generate(context.Background(), "the question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
}

func TestOllamaGenerator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	g := NewOllamaGenerator(srv.URL, "missing-model", 0)
	_, err := g.Generate(context.Background(), "prompt")
	assert.Error(t, err)
}
