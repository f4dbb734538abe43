// Package chat implements the retrieval-augmented answer pipeline.
//
// A turn runs: validate, resolve conversation, append the user turn, gate
// off-topic questions, retrieve knowledge excerpts, assemble the prompt,
// call the model with bounded retry, filter citations against the
// retrieval allow-list, append the assistant turn. The per-conversation
// lock is held for the whole turn so concurrent calls on one conversation
// never interleave their user/assistant pairs.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/reelwise/reelwise/internal/conversation"
	"github.com/reelwise/reelwise/internal/knowledge"
	"github.com/reelwise/reelwise/internal/log"
	"github.com/reelwise/reelwise/internal/websearch"
)

const (
	// MaxMessageRunes bounds user message length, checked before any
	// external call.
	MaxMessageRunes = 4000

	// MaxTopK bounds per-request retrieval size.
	MaxTopK = 20

	// DefaultHistoryWindow is how many recent turns enter the prompt.
	DefaultHistoryWindow = 10

	// fallbackAnswer is returned when the model produces an empty response.
	fallbackAnswer = "I apologize, but I couldn't generate a response. Please try rephrasing your question."
)

// Retriever is the vector index surface the pipeline consumes.
// Satisfied by *knowledge.Store and *knowledge.PGStore.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// WebSearcher mixes current web excerpts into retrieval context.
// Satisfied by *websearch.Client. Always optional and best-effort.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Request is one user turn.
type Request struct {
	ConversationID string // empty = start a new conversation
	Message        string
	TopK           int    // 0 = no retrieval, negative = validation error
	Category       string // parsed with knowledge.ParseCategory; empty = all-stages
}

// Source describes one cited or retrieved document.
type Source struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Category   knowledge.Category `json:"category"`
	Similarity float32            `json:"similarity"`
}

// Response is the result of one completed turn.
type Response struct {
	Answer         string
	ConversationID string
	Sources        []Source           // retrieved documents, retrieval order
	Citations      []string           // document IDs the answer actually cites
	WebSources     []websearch.Result // web excerpts mixed into context, if any
	Validation     *Validation
	ResponseTime   time.Duration
}

// Config contains all required parameters for the Pipeline.
type Config struct {
	Genkit        *genkit.Genkit
	Conversations *conversation.Store
	Retriever     Retriever
	Logger        log.Logger

	ModelName   string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Temperature float32
	MaxTokens   int

	HistoryWindow int           // zero uses DefaultHistoryWindow
	RetryConfig   RetryConfig   // zero value uses defaults
	RateLimiter   *rate.Limiter // nil = default limiter

	WebSearch WebSearcher // nil = web search disabled
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Conversations == nil {
		return errors.New("conversation store is required")
	}
	if cfg.Retriever == nil {
		return errors.New("retriever is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Pipeline answers movie-industry questions with retrieval-augmented
// generation over the knowledge store.
//
// All configuration is captured immutably at construction time to ensure
// thread-safe concurrent access.
type Pipeline struct {
	g             *genkit.Genkit
	conversations *conversation.Store
	retriever     Retriever
	web           WebSearcher
	logger        log.Logger

	modelName     string
	temperature   float32
	maxTokens     int
	historyWindow int
	retryConfig   RetryConfig
	rateLimiter   *rate.Limiter
}

// NewPipeline creates a Pipeline with required configuration.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	historyWindow := cfg.HistoryWindow
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	p := &Pipeline{
		g:             cfg.Genkit,
		conversations: cfg.Conversations,
		retriever:     cfg.Retriever,
		web:           cfg.WebSearch,
		logger:        cfg.Logger,
		modelName:     cfg.ModelName,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		historyWindow: historyWindow,
		retryConfig:   retryConfig,
		rateLimiter:   rl,
	}

	p.logger.Info("chat pipeline initialized",
		"model", p.modelName,
		"historyWindow", p.historyWindow,
		"webSearch", p.web != nil,
	)
	return p, nil
}

// HandleTurn runs one full conversational turn.
//
// The user turn is appended before any external call; the assistant turn is
// appended only on full success. Cancellation mid-flight leaves the user
// turn in place.
func (p *Pipeline) HandleTurn(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Response{}, fmt.Errorf("%w: empty message", ErrValidation)
	}
	if utf8.RuneCountInString(message) > MaxMessageRunes {
		return Response{}, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxMessageRunes)
	}
	if req.TopK < 0 {
		return Response{}, fmt.Errorf("%w: top_k must not be negative", ErrValidation)
	}
	if req.TopK > MaxTopK {
		return Response{}, fmt.Errorf("%w: top_k exceeds maximum %d", ErrValidation, MaxTopK)
	}
	category, err := knowledge.ParseCategory(req.Category)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	id := p.conversations.Ensure(req.ConversationID)

	lock := p.conversations.Locker(id)
	lock.Lock()
	defer lock.Unlock()

	if err := p.conversations.Append(id, conversation.Turn{
		Role:    conversation.RoleUser,
		Content: message,
	}); err != nil {
		return Response{}, err
	}

	if !onTopic(message) {
		return p.finishTurn(id, redirectAnswer, nil, nil, nil, nil, start)
	}

	var results []knowledge.Result
	if req.TopK > 0 {
		results, err = p.retriever.Search(ctx, message,
			knowledge.WithTopK(req.TopK),
			knowledge.WithCategory(category),
		)
		if err != nil {
			if ctx.Err() != nil {
				return Response{}, fmt.Errorf("turn canceled: %w", ctx.Err())
			}
			return Response{}, fmt.Errorf("%w: retrieval failed: %s", ErrUpstream, err)
		}
	}

	// Web search degrades to local-only retrieval, never fails the turn
	var webResults []websearch.Result
	if p.web != nil {
		webResults, err = p.web.Search(ctx, message)
		if err != nil {
			p.logger.Debug("web search failed, continuing with local context", "error", err)
			webResults = nil
		}
	}

	turns, err := p.conversations.Get(id)
	if err != nil {
		return Response{}, err
	}

	opts := []ai.GenerateOption{
		ai.WithSystem(buildSystem(results, webResults)),
		ai.WithMessages(buildMessages(turns, p.historyWindow)...),
	}
	if p.modelName != "" {
		opts = append(opts, ai.WithModelName(p.modelName))
	}
	if p.temperature > 0 || p.maxTokens > 0 {
		genCfg := map[string]any{}
		if p.temperature > 0 {
			genCfg["temperature"] = p.temperature
		}
		if p.maxTokens > 0 {
			genCfg["maxOutputTokens"] = p.maxTokens
		}
		opts = append(opts, ai.WithConfig(genCfg))
	}

	resp, err := p.generateWithRetry(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("turn canceled: %w", ctx.Err())
		}
		return Response{}, fmt.Errorf("%w: %s", ErrUpstream, err)
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		p.logger.Warn("model returned empty response", "conversation_id", id)
		answer = fallbackAnswer
	}

	citations := filterCitations(extractCitations(answer), results)
	validation := validateAnswer(answer, results, citations, message)

	return p.finishTurn(id, answer, results, webResults, citations, validation, start)
}

// finishTurn appends the assistant turn and assembles the response.
func (p *Pipeline) finishTurn(id, answer string, results []knowledge.Result,
	webResults []websearch.Result, citations []string, validation *Validation,
	start time.Time) (Response, error) {

	if err := p.conversations.Append(id, conversation.Turn{
		Role:      conversation.RoleAssistant,
		Content:   answer,
		Citations: citations,
	}); err != nil {
		return Response{}, err
	}

	sources := make([]Source, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if seen[r.DocumentID] {
			continue
		}
		seen[r.DocumentID] = true
		sources = append(sources, Source{
			ID:         r.DocumentID,
			Title:      r.Title,
			Category:   r.Category,
			Similarity: r.Similarity,
		})
	}

	elapsed := time.Since(start)
	p.logger.Debug("turn completed",
		"conversation_id", id,
		"sources", len(sources),
		"citations", len(citations),
		"elapsed", elapsed,
	)

	return Response{
		Answer:         answer,
		ConversationID: id,
		Sources:        sources,
		Citations:      citations,
		WebSources:     webResults,
		Validation:     validation,
		ResponseTime:   elapsed,
	}, nil
}
