// Package stream drives one query through routing, retrieval and
// generation, emitting server-sent events along the way.
package stream

import (
	"context"
	"errors"
	"log"
	"time"

	"ai-deptdocs-be/pkg/llm"
	"ai-deptdocs-be/pkg/rag/conversation"
	"ai-deptdocs-be/pkg/rag/enrichment"
	"ai-deptdocs-be/pkg/rag/prompt"
	"ai-deptdocs-be/pkg/rag/retrieval"
	"ai-deptdocs-be/pkg/rag/router"
)

// ErrGeneration marks an upstream model stream breaking mid-flight.
var ErrGeneration = errors.New("generation stream failed")

const (
	fallbackReply      = "Mohon maaf, saya kesulitan memahami pertanyaan Anda. Tolong ulangi dengan kalimat yang lebih jelas."
	retrievalErrReply  = "Mohon maaf, pencarian dokumen sedang tidak tersedia. Silakan coba beberapa saat lagi."
	generationErrReply = "Terjadi kesalahan saat menghasilkan jawaban."
	fetchingStatus     = "Fetching relevant information..."
)

// phase tracks where the pipeline is, for logging.
type phase string

const (
	phaseRouting    phase = "ROUTING"
	phaseRetrieving phase = "RETRIEVING"
	phaseGenerating phase = "GENERATING"
	phaseStreaming  phase = "STREAMING"
	phaseDone       phase = "DONE"
	phaseErrored    phase = "ERRORED"
)

// QueryRequest is one validated query to answer.
type QueryRequest struct {
	SessionID       string
	Query           string
	Type            string
	Year            string
	TopK            int
	ExpansionWindow int
}

// TelemetryPublisher receives one notification per completed exchange.
// Implementations must not fail the exchange.
type TelemetryPublisher interface {
	ExchangeCompleted(ctx context.Context, sessionID, query, answer string, ragUsed bool)
}

// Config bounds each upstream call independently. Router and retrieval
// timeouts are fatal for the request; a generation timeout truncates the
// stream after flushing whatever already went out. MetadataWait caps how
// long the stream lingers on the enrichment result before emitting an
// empty metadata payload.
type Config struct {
	RouterTimeout     time.Duration
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	MetadataWait      time.Duration
}

func (c Config) withDefaults() Config {
	if c.RouterTimeout <= 0 {
		c.RouterTimeout = 30 * time.Second
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = 60 * time.Second
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 120 * time.Second
	}
	if c.MetadataWait <= 0 {
		c.MetadataWait = 10 * time.Second
	}
	return c
}

type Coordinator struct {
	router    *router.Router
	retriever *retrieval.Coordinator
	history   *conversation.Store
	enricher  *enrichment.Service
	provider  llm.LLMProvider
	telemetry TelemetryPublisher
	cfg       Config
	logger    *log.Logger
}

func NewCoordinator(
	r *router.Router,
	retriever *retrieval.Coordinator,
	history *conversation.Store,
	enricher *enrichment.Service,
	provider llm.LLMProvider,
	telemetry TelemetryPublisher,
	cfg Config,
	logger *log.Logger,
) *Coordinator {
	return &Coordinator{
		router:    r,
		retriever: retriever,
		history:   history,
		enricher:  enricher,
		provider:  provider,
		telemetry: telemetry,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Run answers one query, writing events through emit. It always leaves
// the transport with exactly one terminal event; the returned error only
// reports emit failures (client gone).
func (c *Coordinator) Run(ctx context.Context, req QueryRequest, emit EmitFunc) error {
	c.logPhase(req.SessionID, phaseRouting)
	history := c.history.GetHistory(req.SessionID)

	routerCtx, cancelRouter := context.WithTimeout(ctx, c.cfg.RouterTimeout)
	decision, err := c.router.Decide(routerCtx, req.Query, history)
	cancelRouter()
	if err != nil {
		var parseErr *router.ParseError
		if errors.As(err, &parseErr) {
			c.logf("[STREAM] Session %s router reply unparseable: %v", req.SessionID, err)
		} else {
			c.logf("[STREAM] Session %s routing failed: %v", req.SessionID, err)
		}
		return c.replyDirectly(req, fallbackReply, emit)
	}

	if decision.Action == router.ActionNoRAG {
		if decision.Clarification != "" {
			return c.replyDirectly(req, decision.Clarification, emit)
		}
		return c.generate(ctx, req, prompt.BuildNoRAGPrompt(req.Query, ""), req.Query, history, nil, "", false, emit)
	}

	return c.runRAG(ctx, req, decision, history, emit)
}

func (c *Coordinator) runRAG(ctx context.Context, req QueryRequest, decision *router.Decision, history []conversation.Turn, emit EmitFunc) error {
	c.logPhase(req.SessionID, phaseRetrieving)
	if err := emit(startEvent()); err != nil {
		return err
	}
	if err := emit(statusEvent(fetchingStatus)); err != nil {
		return err
	}

	retrievalCtx, cancelRetrieval := context.WithTimeout(ctx, c.cfg.RetrievalTimeout)
	defer cancelRetrieval()
	block, err := c.retriever.Retrieve(retrievalCtx, retrieval.Request{
		SearchQuery:     decision.SearchQuery,
		RelevanceQuery:  decision.ExpandedQuery,
		Filter:          retrieval.Filter{Type: req.Type, Year: req.Year},
		TopK:            req.TopK,
		ExpansionWindow: req.ExpansionWindow,
	})
	if err != nil {
		c.logPhase(req.SessionID, phaseErrored)
		c.logf("[STREAM] Session %s retrieval failed: %v", req.SessionID, err)
		return emit(errorEvent(retrievalErrReply))
	}

	if err := emit(statusEvent(block.FilterDescription)); err != nil {
		return err
	}

	// Enrichment starts as soon as assets are known, never after
	// generation.
	var results <-chan *enrichment.Result
	if c.enricher != nil && len(block.Assets) > 0 {
		ch, cancel, err := c.enricher.Submit(ctx, block.Assets)
		if err != nil {
			c.logf("[STREAM] Session %s enrichment submit failed: %v", req.SessionID, err)
		} else {
			defer cancel()
			results = ch
		}
	}

	ragPrompt := prompt.BuildRAGPrompt(decision.ExpandedQuery, block.Content)
	return c.generate(ctx, req, ragPrompt, decision.ExpandedQuery, history, results, block.FilterDescription, true, emit)
}

// replyDirectly streams a fixed reply without touching the generation
// model and commits it to history.
func (c *Coordinator) replyDirectly(req QueryRequest, reply string, emit EmitFunc) error {
	if err := emit(startEvent()); err != nil {
		return err
	}
	if err := emit(chunkEvent(reply)); err != nil {
		return err
	}

	c.history.Append(req.SessionID,
		conversation.Turn{Role: conversation.RoleHuman, Content: req.Query},
		conversation.Turn{Role: conversation.RoleAI, Content: reply},
	)
	c.logPhase(req.SessionID, phaseDone)
	return emit(endEvent())
}

// generate streams the model response. historyQuery is what gets stored
// as the human turn: the clean expanded query on the RAG path, the raw
// query otherwise. History is only committed after the stream completes.
func (c *Coordinator) generate(
	ctx context.Context,
	req QueryRequest,
	promptText, historyQuery string,
	history []conversation.Turn,
	enrichResults <-chan *enrichment.Result,
	filterStatus string,
	ragUsed bool,
	emit EmitFunc,
) error {
	c.logPhase(req.SessionID, phaseGenerating)

	messages := toMessages(history, promptText)
	genCtx, cancelGen := context.WithTimeout(ctx, c.cfg.GenerationTimeout)
	defer cancelGen()
	chunks, errs := c.provider.Stream(genCtx, messages)

	// The RAG path emits the start event before retrieval status updates.
	if !ragUsed {
		if err := emit(startEvent()); err != nil {
			return err
		}
	}
	c.logPhase(req.SessionID, phaseStreaming)

	var answer []byte
	for chunk := range chunks {
		answer = append(answer, chunk...)
		if err := emit(chunkEvent(chunk)); err != nil {
			return err
		}
	}
	if err := <-errs; err != nil {
		// Partial output is already flushed; the terminal event reports
		// the break.
		c.logPhase(req.SessionID, phaseErrored)
		c.logf("[STREAM] Session %s %v: %v", req.SessionID, ErrGeneration, err)
		return emit(errorEvent(generationErrReply))
	}

	if ragUsed {
		if err := c.emitMetadata(ctx, emit, enrichResults); err != nil {
			return err
		}
		if err := emit(statusEvent(filterStatus)); err != nil {
			return err
		}
	}

	full := string(answer)
	c.history.Append(req.SessionID,
		conversation.Turn{Role: conversation.RoleHuman, Content: historyQuery},
		conversation.Turn{Role: conversation.RoleAI, Content: full},
	)

	if c.telemetry != nil {
		c.telemetry.ExchangeCompleted(ctx, req.SessionID, req.Query, full, ragUsed)
	}

	c.logPhase(req.SessionID, phaseDone)
	return emit(endEvent())
}

// emitMetadata waits for the enrichment result once all chunks are out.
// The wait is bounded: a cancelled, absent, or stalled task still yields
// a well-formed empty payload so the terminal event always follows.
func (c *Coordinator) emitMetadata(ctx context.Context, emit EmitFunc, results <-chan *enrichment.Result) error {
	var payload interface{} = struct {
		Images []enrichment.ProcessedImage `json:"images"`
		Tables []enrichment.ProcessedTable `json:"tables"`
	}{
		Images: []enrichment.ProcessedImage{},
		Tables: []enrichment.ProcessedTable{},
	}

	if results != nil {
		wait := time.NewTimer(c.cfg.MetadataWait)
		defer wait.Stop()
		select {
		case result, ok := <-results:
			if ok && result != nil {
				payload = result
			}
		case <-ctx.Done():
		case <-wait.C:
			c.logf("[STREAM] Enrichment result not ready after %s, emitting empty metadata", c.cfg.MetadataWait)
		}
	}
	return emit(Event{Type: EventMetadata, Data: payload})
}

func toMessages(history []conversation.Turn, promptText string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		switch turn.Role {
		case conversation.RoleSystem:
			role = "system"
		case conversation.RoleAI:
			role = "model"
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: promptText})
}

func (c *Coordinator) logPhase(sessionID string, p phase) {
	if c.logger != nil {
		c.logger.Printf("[STREAM] Session %s -> %s", sessionID, p)
	}
}

func (c *Coordinator) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
