package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docqa/internal/domain"
	domusage "github.com/kailas-cloud/docqa/internal/domain/usage"
	chatuc "github.com/kailas-cloud/docqa/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/docqa/internal/usecase/health"
)

// --- Mocks ---

type mockAsker struct {
	askFn       func(ctx context.Context, question string, history domain.ChatHistory) (domain.QueryResult, error)
	lastHistory domain.ChatHistory
	calls       int
}

func (m *mockAsker) Ask(ctx context.Context, question string, history domain.ChatHistory) (domain.QueryResult, error) {
	m.calls++
	m.lastHistory = history
	if m.askFn != nil {
		return m.askFn(ctx, question, history)
	}
	return domain.QueryResult{Answer: "an answer", Question: question, ResolvedQuestion: question}, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type mockUsage struct {
	gotPeriod domusage.Period
}

func (m *mockUsage) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.gotPeriod = period
	start := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	return domusage.Report{
		Period:      period,
		Provider:    "gemini",
		PeriodStart: start,
		PeriodEnd:   start.Add(24 * time.Hour),
		TokensUsed:  1200,
		Budget: domusage.Budget{
			TokensLimit: 1000, TokensRemaining: 0, Exhausted: true, ResetsAt: start.Add(24 * time.Hour),
		},
	}
}

type failingRetriever struct{}

func (failingRetriever) Query(_ context.Context, _ []float32, _ int) ([]domain.ScoredChunk, error) {
	return nil, fmt.Errorf("%w: dial tcp 127.0.0.1:6379: connection refused", domain.ErrIndexQuery)
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, _ []domain.Message) (domain.GenerationResult, error) {
	return domain.GenerationResult{Text: "unused"}, nil
}

// --- Helpers ---

func newTestRouter(chat Asker, health HealthReporter) http.Handler {
	return NewRouter(NewServer(chat, health, zap.NewNop()), RouterOptions{Logger: zap.NewNop()})
}

func postChat(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

// --- Tests ---

func TestChat_Success(t *testing.T) {
	asker := &mockAsker{}
	rr := postChat(t, newTestRouter(asker, nil), `{"question":"What is GenAI?","chat_history":[]}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var resp chatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "an answer" || resp.Question != "What is GenAI?" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(asker.lastHistory) != 0 {
		t.Errorf("expected empty history, got %v", asker.lastHistory)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestChat_MalformedHistoryEntriesDropped(t *testing.T) {
	asker := &mockAsker{}
	body := `{"question":"and?","chat_history":[["q1","a1"],"bad",["q2","a2"],["only one"],[1,2],["a","b","c"]]}`
	rr := postChat(t, newTestRouter(asker, nil), body)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	want := domain.ChatHistory{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}
	if len(asker.lastHistory) != len(want) {
		t.Fatalf("expected %d turns, got %v", len(want), asker.lastHistory)
	}
	for i := range want {
		if asker.lastHistory[i] != want[i] {
			t.Errorf("turn %d: got %+v, want %+v", i, asker.lastHistory[i], want[i])
		}
	}
}

func TestChat_HistoryShapes(t *testing.T) {
	tests := []struct {
		name    string
		history string
		turns   int
	}{
		{"missing", ``, 0},
		{"null", `,"chat_history":null`, 0},
		{"object", `,"chat_history":{"q":"a"}`, 0},
		{"string", `,"chat_history":"oops"`, 0},
		{"valid", `,"chat_history":[["q","a"]]`, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			asker := &mockAsker{}
			rr := postChat(t, newTestRouter(asker, nil), `{"question":"q"`+tc.history+`}`)
			if rr.Code != http.StatusOK {
				t.Fatalf("got %d, want 200", rr.Code)
			}
			if len(asker.lastHistory) != tc.turns {
				t.Errorf("expected %d turns, got %d", tc.turns, len(asker.lastHistory))
			}
		})
	}
}

func TestChat_InvalidBody(t *testing.T) {
	asker := &mockAsker{}
	rr := postChat(t, newTestRouter(asker, nil), `{not json`)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", rr.Code)
	}
	if decodeError(t, rr) == "" {
		t.Error("expected error message")
	}
	if asker.calls != 0 {
		t.Error("asker should not be called")
	}
}

func TestChat_EmptyQuestion(t *testing.T) {
	svc := chatuc.New(failingRetriever{}, stubEmbedder{}, stubGenerator{}, 4)
	rr := postChat(t, newTestRouter(svc, nil), `{"question":"  ","chat_history":[]}`)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", rr.Code)
	}
	if msg := decodeError(t, rr); !strings.Contains(msg, "question") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestChat_IndexUnreachable(t *testing.T) {
	svc := chatuc.New(failingRetriever{}, stubEmbedder{}, stubGenerator{}, 4)
	rr := postChat(t, newTestRouter(svc, nil), `{"question":"What is GenAI?","chat_history":[]}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	msg := decodeError(t, rr)
	if msg == "" {
		t.Fatal("expected non-empty error")
	}
	if strings.Contains(msg, "127.0.0.1") {
		t.Errorf("internal details leaked: %q", msg)
	}
}

func TestChat_ErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"generation", fmt.Errorf("%w: upstream 503", domain.ErrGeneration), domain.ErrGeneration.Error()},
		{"embedding", fmt.Errorf("%w: %w", domain.ErrRetrieval, domain.ErrEmbeddingProviderError), domain.ErrEmbeddingProviderError.Error()},
		{"budget", fmt.Errorf("%w: embed query: budget check: %w", domain.ErrRetrieval, domain.ErrTokenBudgetExceeded), domain.ErrTokenBudgetExceeded.Error()},
		{"unknown", errors.New("boom"), "internal error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			asker := &mockAsker{askFn: func(context.Context, string, domain.ChatHistory) (domain.QueryResult, error) {
				return domain.QueryResult{}, tc.err
			}}
			rr := postChat(t, newTestRouter(asker, nil), `{"question":"q"}`)

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("got %d, want 500", rr.Code)
			}
			if msg := decodeError(t, rr); msg != tc.want {
				t.Errorf("got %q, want %q", msg, tc.want)
			}
		})
	}
}

func TestChat_UsageHeaders(t *testing.T) {
	asker := &mockAsker{askFn: func(ctx context.Context, q string, _ domain.ChatHistory) (domain.QueryResult, error) {
		u := domain.UsageFromContext(ctx)
		u.AddEmbedding(5)
		u.AddGeneration(domain.GenerationResult{PromptTokens: 120, CompletionTokens: 30})
		return domain.QueryResult{Answer: "a", Question: q}, nil
	}}
	rr := postChat(t, newTestRouter(asker, nil), `{"question":"q"}`)

	if got := rr.Header().Get("X-Embedding-Tokens"); got != "5" {
		t.Errorf("X-Embedding-Tokens = %q", got)
	}
	if got := rr.Header().Get("X-Prompt-Tokens"); got != "120" {
		t.Errorf("X-Prompt-Tokens = %q", got)
	}
	if got := rr.Header().Get("X-Completion-Tokens"); got != "30" {
		t.Errorf("X-Completion-Tokens = %q", got)
	}
}

func TestChat_PanicRecovered(t *testing.T) {
	asker := &mockAsker{askFn: func(context.Context, string, domain.ChatHistory) (domain.QueryResult, error) {
		panic("unexpected")
	}}
	rr := postChat(t, newTestRouter(asker, nil), `{"question":"q"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("got %d, want 500", rr.Code)
	}
	if decodeError(t, rr) != "internal error" {
		t.Error("expected JSON error body")
	}
}

func TestIndex_ServesPage(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(&mockAsker{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "/api/chat") {
		t.Error("page does not call the chat endpoint")
	}
}

// With API keys configured the page stays public, so its chat call has to
// carry a bearer token of its own.
func TestIndex_PageAuthenticatesChatCalls(t *testing.T) {
	handler := BearerAuthMiddleware([]string{"secret"})(newTestRouter(&mockAsker{}, nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("page behind auth: got %d, want 200", rr.Code)
	}
	page := rr.Body.String()
	if !strings.Contains(page, `headers["Authorization"] = "Bearer " + key`) {
		t.Error("page never sends an Authorization header")
	}
	if !strings.Contains(page, "res.status === 401") {
		t.Error("page does not ask for a key after a 401")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		report healthuc.Report
		code   int
	}{
		{
			name: "healthy",
			report: healthuc.Report{
				Status: healthuc.Healthy,
				Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
				Chunks: 12,
			},
			code: http.StatusOK,
		},
		{
			name: "degraded",
			report: healthuc.Report{
				Status: healthuc.Degraded,
				Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "generation": healthuc.CheckError},
				Chunks: -1,
			},
			code: http.StatusServiceUnavailable,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h := newTestRouter(&mockAsker{}, &mockHealth{report: tc.report})
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if rr.Code != tc.code {
				t.Errorf("got %d, want %d", rr.Code, tc.code)
			}
			var resp healthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != string(tc.report.Status) {
				t.Errorf("status %q, want %q", resp.Status, tc.report.Status)
			}
			if (resp.Chunks != nil) != (tc.report.Chunks >= 0) {
				t.Errorf("unexpected chunks field %v", resp.Chunks)
			}
		})
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(&mockAsker{}, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))

	if rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rr.Code)
	}
	if decodeError(t, rr) == "" {
		t.Error("expected error body")
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	newTestRouter(&mockAsker{}, nil).ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
}

func TestUsage(t *testing.T) {
	usage := &mockUsage{}
	h := NewRouter(NewServer(&mockAsker{}, nil, zap.NewNop()).WithUsage(usage), RouterOptions{Logger: zap.NewNop()})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/usage?period=day", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rr.Code)
	}
	var resp usageResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Period != "day" || resp.TokensUsed != 1200 || !resp.Budget.IsExhausted {
		t.Errorf("unexpected body %+v", resp)
	}
	if resp.PeriodStart == nil || resp.Budget.ResetsAt == nil {
		t.Error("expected period bounds and reset time")
	}
}

func TestUsage_Errors(t *testing.T) {
	tests := []struct {
		name   string
		usage  UsageReporter
		query  string
		status int
	}{
		{"bad period", &mockUsage{}, "?period=week", http.StatusBadRequest},
		{"not enabled", nil, "", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(&mockAsker{}, nil, zap.NewNop())
			if tc.usage != nil {
				s.WithUsage(tc.usage)
			}
			rr := httptest.NewRecorder()
			NewRouter(s, RouterOptions{Logger: zap.NewNop()}).
				ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/usage"+tc.query, http.NoBody))

			if rr.Code != tc.status {
				t.Errorf("got %d, want %d", rr.Code, tc.status)
			}
			if decodeError(t, rr) == "" {
				t.Error("expected error body")
			}
		})
	}
}
