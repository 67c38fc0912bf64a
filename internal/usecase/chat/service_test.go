package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/docqa/internal/domain"
)

// --- Mocks ---

type mockRetriever struct {
	chunks []domain.ScoredChunk
	err    error
	lastK  int
	lastV  []float32
	called bool
}

func (m *mockRetriever) Query(_ context.Context, vector []float32, k int) ([]domain.ScoredChunk, error) {
	m.called = true
	m.lastV = vector
	m.lastK = k
	return m.chunks, m.err
}

type mockEmbedder struct {
	vec   []float32
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, PromptTokens: 3, TotalTokens: 3}, nil
}

// mockGenerator replies with the queued texts in order and records every prompt.
type mockGenerator struct {
	replies []string
	err     error
	calls   [][]domain.Message
}

func (m *mockGenerator) Generate(_ context.Context, messages []domain.Message) (domain.GenerationResult, error) {
	m.calls = append(m.calls, messages)
	if m.err != nil {
		return domain.GenerationResult{}, m.err
	}
	var text string
	if len(m.replies) > 0 {
		text, m.replies = m.replies[0], m.replies[1:]
	}
	return domain.GenerationResult{Text: text, PromptTokens: 10, CompletionTokens: 5}, nil
}

func sampleChunks() []domain.ScoredChunk {
	return []domain.ScoredChunk{
		{Chunk: domain.Chunk{Source: "impact.pdf", Page: 1, Text: "Generative AI raises productivity by 14%."}, Score: 0.92},
		{Chunk: domain.Chunk{Source: "impact.pdf", Page: 2, Text: "Adoption costs vary by firm size."}, Score: 0.81},
	}
}

// --- Tests ---

func TestAsk_EmptyHistorySkipsReformulation(t *testing.T) {
	idx := &mockRetriever{chunks: sampleChunks()}
	emb := &mockEmbedder{vec: []float32{1, 0}}
	gen := &mockGenerator{replies: []string{"  It raises productivity.  "}}
	svc := New(idx, emb, gen, 4)

	res, err := svc.Ask(context.Background(), "What is the impact of generative AI?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gen.calls) != 1 {
		t.Fatalf("expected exactly one generator call, got %d", len(gen.calls))
	}
	if res.ResolvedQuestion != "What is the impact of generative AI?" {
		t.Errorf("expected resolved question to equal the original, got %q", res.ResolvedQuestion)
	}
	if len(emb.texts) != 1 || emb.texts[0] != res.Question {
		t.Errorf("expected the original question to be embedded, got %v", emb.texts)
	}
	if res.Answer != "It raises productivity." {
		t.Errorf("unexpected answer %q", res.Answer)
	}
	if res.Question != "What is the impact of generative AI?" {
		t.Errorf("expected question echoed, got %q", res.Question)
	}
	if idx.lastK != 4 {
		t.Errorf("expected topK 4, got %d", idx.lastK)
	}
	if len(res.Chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(res.Chunks))
	}
}

func TestAsk_FollowUpIsCondensed(t *testing.T) {
	idx := &mockRetriever{chunks: sampleChunks()}
	emb := &mockEmbedder{vec: []float32{0, 1}}
	gen := &mockGenerator{replies: []string{
		"What is the cost of adopting generative AI?",
		"Costs vary by firm size.",
	}}
	svc := New(idx, emb, gen, 0)

	history := domain.ChatHistory{{Question: "What is generative AI?", Answer: "A class of models that create content."}}
	res, err := svc.Ask(context.Background(), "What about its cost?", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(gen.calls) != 2 {
		t.Fatalf("expected 2 generator calls, got %d", len(gen.calls))
	}
	condense := gen.calls[0][0].Content
	for _, want := range []string{"What is generative AI?", "A class of models that create content.", "What about its cost?"} {
		if !strings.Contains(condense, want) {
			t.Errorf("condense prompt missing %q:\n%s", want, condense)
		}
	}

	if len(emb.texts) != 1 || emb.texts[0] != "What is the cost of adopting generative AI?" {
		t.Errorf("expected standalone query to be embedded, got %v", emb.texts)
	}
	if res.ResolvedQuestion != "What is the cost of adopting generative AI?" {
		t.Errorf("unexpected resolved question %q", res.ResolvedQuestion)
	}
	if res.Question != "What about its cost?" {
		t.Errorf("expected original question echoed, got %q", res.Question)
	}
	if idx.lastK != domain.DefaultTopK {
		t.Errorf("expected default topK, got %d", idx.lastK)
	}
}

func TestAsk_HistoryRenderedOldestFirst(t *testing.T) {
	gen := &mockGenerator{replies: []string{"standalone", "answer"}}
	svc := New(&mockRetriever{}, &mockEmbedder{vec: []float32{1}}, gen, 2)

	history := domain.ChatHistory{
		{Question: "first question", Answer: "first answer"},
		{Question: "second question", Answer: "second answer"},
	}
	if _, err := svc.Ask(context.Background(), "third", history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := gen.calls[0][0].Content
	if strings.Index(prompt, "first question") > strings.Index(prompt, "second question") {
		t.Errorf("expected oldest turn first:\n%s", prompt)
	}
}

func TestAsk_EmptyReformulationFallsBack(t *testing.T) {
	emb := &mockEmbedder{vec: []float32{1}}
	gen := &mockGenerator{replies: []string{"   ", "answer"}}
	svc := New(&mockRetriever{}, emb, gen, 2)

	res, err := svc.Ask(context.Background(), "and then?", domain.ChatHistory{{Question: "q", Answer: "a"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ResolvedQuestion != "and then?" || emb.texts[0] != "and then?" {
		t.Errorf("expected fallback to original question, got %q / %v", res.ResolvedQuestion, emb.texts)
	}
}

func TestAsk_AnswerPromptIsGrounded(t *testing.T) {
	gen := &mockGenerator{replies: []string{"answer"}}
	svc := New(&mockRetriever{chunks: sampleChunks()}, &mockEmbedder{vec: []float32{1}}, gen, 4)

	if _, err := svc.Ask(context.Background(), "How much?", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := gen.calls[0]
	if len(msgs) != 2 || msgs[0].Role != domain.RoleSystem || msgs[1].Role != domain.RoleUser {
		t.Fatalf("unexpected message layout %+v", msgs)
	}
	system := msgs[0].Content
	first := strings.Index(system, "raises productivity")
	second := strings.Index(system, "Adoption costs")
	if first < 0 || second < 0 || first > second {
		t.Errorf("expected chunks in rank order:\n%s", system)
	}
	if !strings.Contains(system, "only") {
		t.Errorf("expected grounding instruction:\n%s", system)
	}
	if msgs[1].Content != "How much?" {
		t.Errorf("expected question verbatim, got %q", msgs[1].Content)
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	gen := &mockGenerator{}
	svc := New(&mockRetriever{}, &mockEmbedder{}, gen, 4)

	_, err := svc.Ask(context.Background(), "   ", nil)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	if len(gen.calls) != 0 {
		t.Error("generator should not be called")
	}
}

func TestAsk_IndexFailure(t *testing.T) {
	idx := &mockRetriever{err: domain.ErrIndexQuery}
	gen := &mockGenerator{replies: []string{"answer"}}
	svc := New(idx, &mockEmbedder{vec: []float32{1}}, gen, 4)

	_, err := svc.Ask(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrRetrieval) {
		t.Errorf("expected ErrRetrieval, got %v", err)
	}
	if !errors.Is(err, domain.ErrIndexQuery) {
		t.Errorf("expected cause to be kept, got %v", err)
	}
	if len(gen.calls) != 0 {
		t.Error("no answer should be generated after a retrieval failure")
	}
}

func TestAsk_EmbeddingFailure(t *testing.T) {
	emb := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	idx := &mockRetriever{}
	svc := New(idx, emb, &mockGenerator{}, 4)

	_, err := svc.Ask(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrRetrieval) || !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected ErrRetrieval wrapping provider error, got %v", err)
	}
	if idx.called {
		t.Error("index should not be queried")
	}
}

func TestAsk_GenerationFailure(t *testing.T) {
	tests := []struct {
		name    string
		history domain.ChatHistory
		err     error
	}{
		{"answer", nil, errors.New("boom")},
		{"reformulation", domain.ChatHistory{{Question: "q", Answer: "a"}}, errors.New("boom")},
		{"already wrapped", nil, domain.ErrGeneration},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockRetriever{}, &mockEmbedder{vec: []float32{1}}, &mockGenerator{err: tc.err}, 4)

			_, err := svc.Ask(context.Background(), "q", tc.history)
			if !errors.Is(err, domain.ErrGeneration) {
				t.Errorf("expected ErrGeneration, got %v", err)
			}
		})
	}
}

func TestAsk_RecordsGenerationUsage(t *testing.T) {
	gen := &mockGenerator{replies: []string{"standalone", "answer"}}
	svc := New(&mockRetriever{}, &mockEmbedder{vec: []float32{1}}, gen, 4)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := svc.Ask(ctx, "q2", domain.ChatHistory{{Question: "q1", Answer: "a1"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.PromptTokens != 20 || usage.CompletionTokens != 10 {
		t.Errorf("unexpected usage %+v", *usage)
	}
}
