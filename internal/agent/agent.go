// Package agent implements the per-turn conversation state machine:
// ROUTE → (RETRIEVE →) RESPOND → DONE.
//
// ROUTE lets the model choose between calling the retrieval tool and
// answering directly. The turn is a single deterministic pass; there is
// no cycle back to ROUTE. Retrieval failures degrade to an empty
// context; model failures abort the turn.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/recaplabs/recap/internal/retrieval"
)

// retrieveToolName is the single tool exposed to the routing model.
const retrieveToolName = "retrieve_documents"

// ErrGeneration indicates a model call failed during ROUTE or RESPOND.
// The turn is aborted; the caller surfaces a terminal error frame and
// must not report the turn as answered.
var ErrGeneration = errors.New("answer generation failed")

// Retriever runs one retrieval step for a turn.
type Retriever interface {
	Retrieve(ctx context.Context, rawQuery, folderID string) (*retrieval.Invocation, error)
}

// Result is the outcome of one completed turn.
type Result struct {
	// Answer is the final assistant text.
	Answer string

	// Invocation is the turn's retrieval record, nil when the model
	// answered directly. Its Results are empty when retrieval found
	// nothing or failed.
	Invocation *retrieval.Invocation
}

// retrieveArgs is the tool-call argument schema presented to the model.
type retrieveArgs struct {
	Query string `json:"query" jsonschema:"description=Search query for the folder's documents"`
}

// Config contains the orchestrator's dependencies.
type Config struct {
	Genkit    *genkit.Genkit
	ModelName string // provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Retriever Retriever
	Logger    *slog.Logger
}

// Orchestrator runs the decide/retrieve/generate flow for one user turn.
// It is stateless across turns and safe for concurrent use.
type Orchestrator struct {
	modelName string
	retriever Retriever
	logger    *slog.Logger
	toolRef   ai.ToolRef

	// generate performs one model call, streaming chunks to cb when cb
	// is non-nil. Swapped in tests.
	generate func(ctx context.Context, cb ai.ModelStreamCallback, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// New creates an Orchestrator and registers the retrieval tool with
// Genkit. The tool body never runs: routing uses WithReturnToolRequests,
// and the orchestrator executes retrieval itself.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("genkit instance is required")
	}
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tool := genkit.DefineTool(cfg.Genkit, retrieveToolName,
		"Search the user's folder for document passages relevant to a query.",
		func(_ *ai.ToolContext, _ retrieveArgs) (string, error) {
			return "", errors.New("tool is dispatched by the orchestrator, not by the model runtime")
		})

	return &Orchestrator{
		modelName: cfg.ModelName,
		retriever: cfg.Retriever,
		logger:    logger,
		toolRef:   tool,
		generate: func(ctx context.Context, cb ai.ModelStreamCallback, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
			if cb != nil {
				opts = append(opts, ai.WithStreaming(cb))
			}
			return genkit.Generate(ctx, cfg.Genkit, opts...)
		},
	}, nil
}

// Run executes one turn: history plus the new user message in, final
// answer out, with events streamed to emit along the way. folderID
// scopes any retrieval performed for the turn.
func (o *Orchestrator) Run(ctx context.Context, history []Turn, userMessage, folderID string, emit EmitFunc) (*Result, error) {
	if emit == nil {
		emit = func(Event) error { return nil }
	}

	// Count forwarded deltas so a direct answer that arrived without
	// streaming still reaches the client as one text event.
	var streamed int
	forward := func(_ context.Context, chunk *ai.ModelResponseChunk) error {
		text := chunk.Text()
		if text == "" {
			return nil
		}
		streamed++
		return emit(Event{Type: EventText, Text: text})
	}

	msgs := append(toMessages(visibleTurns(history)), ai.NewUserMessage(ai.NewTextPart(userMessage)))

	decision, err := o.route(ctx, msgs, forward)
	if err != nil {
		return nil, err
	}

	// Direct answer: ROUTE's own text ends the turn.
	if !decision.isTool {
		if streamed == 0 && decision.answer != "" {
			if err := emit(Event{Type: EventText, Text: decision.answer}); err != nil {
				return nil, err
			}
		}
		o.logger.Debug("turn answered directly")
		return &Result{Answer: decision.answer}, nil
	}

	// A tool request with no usable query argument still retrieves,
	// using the user's message verbatim.
	if decision.toolQuery == "" {
		decision.toolQuery = userMessage
	}

	if err := emit(Event{Type: EventToolStart}); err != nil {
		return nil, err
	}

	inv, err := o.retriever.Retrieve(ctx, decision.toolQuery, folderID)
	if err != nil {
		// Degrade: the user still gets an answer acknowledging the
		// missing context.
		o.logger.Warn("retrieval failed, responding without context", "error", err)
		inv = &retrieval.Invocation{
			Query:             decision.toolQuery,
			ReformulatedQuery: decision.toolQuery,
		}
	}

	if err := emit(Event{Type: EventToolEnd, Invocation: inv}); err != nil {
		return nil, err
	}

	streamedBeforeRespond := streamed
	answer, err := o.respond(ctx, inv.SerializedText, history, userMessage, forward)
	if err != nil {
		return nil, err
	}
	// Same guard as the direct branch: a final answer that arrived
	// without chunks still reaches the client as one text event.
	if streamed == streamedBeforeRespond && answer != "" {
		if err := emit(Event{Type: EventText, Text: answer}); err != nil {
			return nil, err
		}
	}

	o.logger.Debug("turn answered with retrieval",
		"results", len(inv.Results), "answer_length", len(answer))
	return &Result{Answer: answer, Invocation: inv}, nil
}

// routeDecision is the two-branch result of the ROUTE state: either a
// retrieval request (isTool set) or a direct answer.
type routeDecision struct {
	isTool    bool
	toolQuery string
	answer    string
}

// route runs the routing model call. Tool requests are returned to the
// orchestrator instead of being dispatched by the model runtime.
func (o *Orchestrator) route(ctx context.Context, msgs []*ai.Message, cb ai.ModelStreamCallback) (routeDecision, error) {
	opts := []ai.GenerateOption{
		ai.WithSystem(routeSystemPrompt),
		ai.WithMessages(msgs...),
		ai.WithTools(o.toolRef),
		ai.WithReturnToolRequests(true),
	}
	if o.modelName != "" {
		opts = append(opts, ai.WithModelName(o.modelName))
	}

	resp, err := o.generate(ctx, cb, opts...)
	if err != nil {
		return routeDecision{}, fmt.Errorf("%w: routing: %v", ErrGeneration, err)
	}

	if reqs := resp.ToolRequests(); len(reqs) > 0 {
		return routeDecision{isTool: true, toolQuery: toolQuery(reqs[0])}, nil
	}
	return routeDecision{answer: strings.TrimSpace(resp.Text())}, nil
}

// respond runs the final generation call with the retrieved context
// injected into the system instruction.
func (o *Orchestrator) respond(ctx context.Context, contextText string, history []Turn, userMessage string, cb ai.ModelStreamCallback) (string, error) {
	msgs := append(toMessages(visibleTurns(history)), ai.NewUserMessage(ai.NewTextPart(userMessage)))

	opts := []ai.GenerateOption{
		ai.WithSystem(answerSystemPrompt, contextText),
		ai.WithMessages(msgs...),
	}
	if o.modelName != "" {
		opts = append(opts, ai.WithModelName(o.modelName))
	}

	resp, err := o.generate(ctx, cb, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: responding: %v", ErrGeneration, err)
	}
	return resp.Text(), nil
}

// toolQuery extracts the query argument from a tool request.
func toolQuery(req *ai.ToolRequest) string {
	if args, ok := req.Input.(map[string]any); ok {
		if q, ok := args["query"].(string); ok {
			return strings.TrimSpace(q)
		}
	}
	if args, ok := req.Input.(retrieveArgs); ok {
		return strings.TrimSpace(args.Query)
	}
	return ""
}
