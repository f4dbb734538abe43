package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/reelwise/reelwise/internal/conversation"
	"github.com/reelwise/reelwise/internal/knowledge"
	"github.com/reelwise/reelwise/internal/log"
	"github.com/reelwise/reelwise/internal/testutil"
	"github.com/reelwise/reelwise/internal/websearch"
)

// mockRetriever implements Retriever with canned results.
type mockRetriever struct {
	mu        sync.Mutex
	results   []knowledge.Result
	err       error
	calls     int
	lastQuery string
	lastOpts  int
}

func (m *mockRetriever) Search(_ context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastQuery = query
	m.lastOpts = len(opts)
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockRetriever) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockWebSearcher implements WebSearcher.
type mockWebSearcher struct {
	results []websearch.Result
	err     error
}

func (m *mockWebSearcher) Search(_ context.Context, _ string) ([]websearch.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// fastRetry keeps test retries in the millisecond range.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

type pipelineFixture struct {
	pipeline  *Pipeline
	llm       *testutil.MockLLM
	retriever *mockRetriever
	convs     *conversation.Store
}

func newTestPipeline(t *testing.T, mutate func(*Config)) *pipelineFixture {
	t.Helper()

	g := genkit.Init(context.Background())
	llm := testutil.NewMockLLM("mocked answer about filmmaking")
	llm.RegisterModel(g)

	retriever := &mockRetriever{}
	convs := conversation.New()

	cfg := Config{
		Genkit:        g,
		Conversations: convs,
		Retriever:     retriever,
		Logger:        log.NewNop(),
		ModelName:     "mock/test-model",
		RetryConfig:   fastRetry(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	p, err := NewPipeline(cfg)
	if err != nil {
		t.Fatalf("NewPipeline() unexpected error: %v", err)
	}
	return &pipelineFixture{pipeline: p, llm: llm, retriever: retriever, convs: convs}
}

func TestNewPipelineConfigValidation(t *testing.T) {
	t.Parallel()

	g := genkit.Init(context.Background())
	base := Config{
		Genkit:        g,
		Conversations: conversation.New(),
		Retriever:     &mockRetriever{},
		Logger:        log.NewNop(),
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing genkit", func(c *Config) { c.Genkit = nil }},
		{"missing conversations", func(c *Config) { c.Conversations = nil }},
		{"missing retriever", func(c *Config) { c.Retriever = nil }},
		{"missing logger", func(c *Config) { c.Logger = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if _, err := NewPipeline(cfg); err == nil {
				t.Error("NewPipeline() expected error, got nil")
			}
		})
	}
}

func TestHandleTurnValidation(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"empty message", Request{Message: "", TopK: 3}},
		{"whitespace message", Request{Message: "   \n\t ", TopK: 3}},
		{"oversize message", Request{Message: strings.Repeat("a", MaxMessageRunes+1), TopK: 3}},
		{"negative top_k", Request{Message: "how does film editing work?", TopK: -1}},
		{"excessive top_k", Request{Message: "how does film editing work?", TopK: MaxTopK + 1}},
		{"unknown category", Request{Message: "how does film editing work?", TopK: 3, Category: "distribution"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.HandleTurn(context.Background(), tt.req)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("HandleTurn() error = %v, want ErrValidation", err)
			}
		})
	}

	// Validation runs before any external call or conversation write
	if got := f.retriever.callCount(); got != 0 {
		t.Errorf("retriever called %d times during validation failures, want 0", got)
	}
	if got := len(f.llm.Calls()); got != 0 {
		t.Errorf("LLM called %d times during validation failures, want 0", got)
	}
	if got := len(f.convs.List()); got != 0 {
		t.Errorf("%d conversations created during validation failures, want 0", got)
	}
}

func TestHandleTurnAutoCreatesConversation(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "what happens during film pre-production?",
		TopK:    3,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatal("HandleTurn() returned empty conversation ID")
	}

	turns, err := f.convs.Get(resp.ConversationID)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("conversation has %d turns, want 2", len(turns))
	}
	if turns[0].Role != conversation.RoleUser || turns[1].Role != conversation.RoleAssistant {
		t.Errorf("turn roles = %s,%s, want user,assistant", turns[0].Role, turns[1].Role)
	}
	if resp.Answer != "mocked answer about filmmaking" {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestHandleTurnAdoptsUnknownID(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		ConversationID: "client-supplied",
		Message:        "what does a film director do?",
		TopK:           3,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error: %v", err)
	}
	if resp.ConversationID != "client-supplied" {
		t.Errorf("ConversationID = %q, want client-supplied", resp.ConversationID)
	}
	if !f.convs.Exists("client-supplied") {
		t.Error("conversation was not auto-created under the supplied ID")
	}
}

func TestHandleTurnOffTopic(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "what is the best recipe for banana bread?",
		TopK:    3,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error: %v", err)
	}
	if resp.Answer != redirectAnswer {
		t.Errorf("Answer = %q, want redirect", resp.Answer)
	}
	if f.retriever.callCount() != 0 {
		t.Error("retriever called for off-topic question")
	}
	if len(f.llm.Calls()) != 0 {
		t.Error("LLM called for off-topic question")
	}

	// Both turns still recorded
	turns, _ := f.convs.Get(resp.ConversationID)
	if len(turns) != 2 {
		t.Errorf("conversation has %d turns, want 2", len(turns))
	}
}

func TestHandleTurnTopKZeroSkipsRetrieval(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "how is a movie scene lit?",
		TopK:    0,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error: %v", err)
	}
	if f.retriever.callCount() != 0 {
		t.Error("retriever called with top_k=0")
	}
	if len(resp.Sources) != 0 {
		t.Errorf("Sources = %d, want 0", len(resp.Sources))
	}
	if len(f.llm.Calls()) != 1 {
		t.Errorf("LLM calls = %d, want 1", len(f.llm.Calls()))
	}
}

func TestHandleTurnRetrievalSourcesAndCitations(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)
	f.retriever.results = []knowledge.Result{
		{DocumentID: "kb:lighting", Title: "Set Lighting", Category: knowledge.CategoryProduction, Content: "Lighting basics.", Similarity: 0.9},
		{DocumentID: "kb:lighting", Title: "Set Lighting", Category: knowledge.CategoryProduction, Content: "More lighting.", Similarity: 0.8},
		{DocumentID: "kb:sound", Title: "Sound Recording", Category: knowledge.CategoryProduction, Content: "Sound basics.", Similarity: 0.7},
	}
	f.llm.AddResponse("lit",
		"Three-point lighting is standard [source: kb:lighting]. "+
			"According to the Imaginary Handbook, gaffers use tape. [source: kb:absent]")

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "how is a movie scene lit?",
		TopK:    3,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error: %v", err)
	}

	// Sources deduplicate chunks of the same document, retrieval order kept
	if len(resp.Sources) != 2 {
		t.Fatalf("Sources = %d, want 2", len(resp.Sources))
	}
	if resp.Sources[0].ID != "kb:lighting" || resp.Sources[1].ID != "kb:sound" {
		t.Errorf("Sources order = %s,%s", resp.Sources[0].ID, resp.Sources[1].ID)
	}

	// Hallucinated citations dropped by the allow-list
	if len(resp.Citations) != 1 || resp.Citations[0] != "kb:lighting" {
		t.Errorf("Citations = %v, want [kb:lighting]", resp.Citations)
	}

	// Assistant turn carries the filtered citations
	turns, _ := f.convs.Get(resp.ConversationID)
	last := turns[len(turns)-1]
	if len(last.Citations) != 1 || last.Citations[0] != "kb:lighting" {
		t.Errorf("assistant turn citations = %v, want [kb:lighting]", last.Citations)
	}

	if resp.Validation == nil {
		t.Error("Validation is nil, want populated")
	}
}

func TestHandleTurnEmptyRetrievalIsNotError(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)
	f.retriever.results = nil

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "how does film distribution work?",
		TopK:    3,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error: %v", err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("Sources = %d, want 0", len(resp.Sources))
	}
	if resp.Answer == "" {
		t.Error("Answer is empty, want LLM response")
	}
}

func TestHandleTurnRetrieverFailure(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)
	f.retriever.err = errors.New("embedding provider exploded")

	_, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "how does film editing work?",
		TopK:    3,
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("HandleTurn() error = %v, want ErrUpstream", err)
	}
	if len(f.llm.Calls()) != 0 {
		t.Error("LLM called after retrieval failure")
	}
}

func TestHandleTurnLLMRetrySucceeds(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)
	f.llm.FailNTimes(2, errors.New("503 service unavailable"))

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "what does a film producer do?",
		TopK:    0,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error after transient failures: %v", err)
	}
	if resp.Answer != "mocked answer about filmmaking" {
		t.Errorf("Answer = %q", resp.Answer)
	}
}

func TestHandleTurnLLMRetriesExhausted(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)
	// 3 attempts total with MaxRetries=2; fail all of them
	f.llm.FailNTimes(3, errors.New("503 service unavailable"))

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		ConversationID: "retry-exhausted",
		Message:        "what does a film producer do?",
		TopK:           0,
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("HandleTurn() error = %v, want ErrUpstream", err)
	}
	if resp.Answer != "" {
		t.Errorf("Answer = %q, want empty on failure", resp.Answer)
	}

	// User turn persisted, no dangling assistant turn
	turns, getErr := f.convs.Get("retry-exhausted")
	if getErr != nil {
		t.Fatalf("Get() unexpected error: %v", getErr)
	}
	if len(turns) != 1 || turns[0].Role != conversation.RoleUser {
		t.Errorf("turns after failure = %d, want exactly the user turn", len(turns))
	}
}

func TestHandleTurnLLMNonRetryableFailsFast(t *testing.T) {
	t.Parallel()
	f := newTestPipeline(t, nil)
	f.llm.FailNTimes(1, errors.New("invalid api key"))

	start := time.Now()
	_, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "what does a film producer do?",
		TopK:    0,
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("HandleTurn() error = %v, want ErrUpstream", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("non-retryable failure took %v, want immediate", elapsed)
	}
}

func TestHandleTurnWebSearchMixedIn(t *testing.T) {
	t.Parallel()
	web := &mockWebSearcher{results: []websearch.Result{
		{Title: "Virtual production news", URL: "https://example.com/vp", Snippet: "LED volumes everywhere."},
	}}
	f := newTestPipeline(t, func(c *Config) { c.WebSearch = web })

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "what is new in movie production technology?",
		TopK:    0,
	})
	if err != nil {
		t.Fatalf("HandleTurn() unexpected error: %v", err)
	}
	if len(resp.WebSources) != 1 {
		t.Errorf("WebSources = %d, want 1", len(resp.WebSources))
	}
}

func TestHandleTurnWebSearchFailureDegrades(t *testing.T) {
	t.Parallel()
	web := &mockWebSearcher{err: errors.New("searxng unreachable")}
	f := newTestPipeline(t, func(c *Config) { c.WebSearch = web })

	resp, err := f.pipeline.HandleTurn(context.Background(), Request{
		Message: "what is new in movie production technology?",
		TopK:    0,
	})
	if err != nil {
		t.Fatalf("HandleTurn() should degrade on web search failure, got: %v", err)
	}
	if len(resp.WebSources) != 0 {
		t.Errorf("WebSources = %d, want 0", len(resp.WebSources))
	}
}

func TestHandleTurnConcurrentSameConversation(t *testing.T) {
	f := newTestPipeline(t, nil)
	id := f.convs.Ensure("shared")

	const turnsPerWorker = 5
	var wg sync.WaitGroup
	wg.Add(2)
	for range 2 {
		go func() {
			defer wg.Done()
			for range turnsPerWorker {
				_, err := f.pipeline.HandleTurn(context.Background(), Request{
					ConversationID: id,
					Message:        "what does a film editor do?",
					TopK:           0,
				})
				if err != nil {
					t.Errorf("HandleTurn() unexpected error: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	turns, err := f.convs.Get(id)
	if err != nil {
		t.Fatalf("Get() unexpected error: %v", err)
	}
	if len(turns) != 2*turnsPerWorker*2 {
		t.Fatalf("turns = %d, want %d", len(turns), 2*turnsPerWorker*2)
	}
	// User/assistant pairs never interleave
	for i := 0; i < len(turns); i += 2 {
		if turns[i].Role != conversation.RoleUser || turns[i+1].Role != conversation.RoleAssistant {
			t.Fatalf("turns %d,%d roles = %s,%s, want user,assistant", i, i+1, turns[i].Role, turns[i+1].Role)
		}
	}
}

func TestHandleTurnConcurrentDistinctConversations(t *testing.T) {
	f := newTestPipeline(t, nil)

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	ids := make([]string, workers)
	for i := range workers {
		ids[i] = f.convs.Ensure("")
		go func() {
			defer wg.Done()
			_, err := f.pipeline.HandleTurn(context.Background(), Request{
				ConversationID: ids[i],
				Message:        "what does a cinematographer do?",
				TopK:           0,
			})
			if err != nil {
				t.Errorf("HandleTurn() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		turns, err := f.convs.Get(id)
		if err != nil {
			t.Fatalf("Get(%q) unexpected error: %v", id, err)
		}
		if len(turns) != 2 {
			t.Errorf("conversation %q has %d turns, want 2", id, len(turns))
		}
	}
}
