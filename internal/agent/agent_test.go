package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/recaplabs/recap/internal/index"
	"github.com/recaplabs/recap/internal/log"
	"github.com/recaplabs/recap/internal/retrieval"
)

// scriptedCall is one canned model response; chunks are streamed to the
// callback before the final response is returned.
type scriptedCall struct {
	chunks []string
	resp   *ai.ModelResponse
	err    error
}

// newTestOrchestrator wires an Orchestrator whose generate function
// plays back scripted calls in order.
func newTestOrchestrator(t *testing.T, retriever Retriever, calls ...scriptedCall) *Orchestrator {
	t.Helper()
	i := 0
	return &Orchestrator{
		modelName: "googleai/gemini-2.5-flash",
		retriever: retriever,
		logger:    log.NewNop(),
		generate: func(ctx context.Context, cb ai.ModelStreamCallback, _ ...ai.GenerateOption) (*ai.ModelResponse, error) {
			if i >= len(calls) {
				t.Fatalf("unexpected model call %d", i+1)
			}
			call := calls[i]
			i++
			if call.err != nil {
				return nil, call.err
			}
			for _, chunk := range call.chunks {
				if err := cb(ctx, &ai.ModelResponseChunk{
					Content: []*ai.Part{ai.NewTextPart(chunk)},
				}); err != nil {
					return nil, err
				}
			}
			return call.resp, nil
		},
	}
}

func directAnswer(text string) *ai.ModelResponse {
	return &ai.ModelResponse{Message: ai.NewModelMessage(ai.NewTextPart(text))}
}

func toolCall(query string) *ai.ModelResponse {
	return &ai.ModelResponse{Message: ai.NewModelMessage(ai.NewToolRequestPart(&ai.ToolRequest{
		Name:  retrieveToolName,
		Input: map[string]any{"query": query},
	}))}
}

// stubRetriever returns a canned invocation or error and records calls.
type stubRetriever struct {
	inv   *retrieval.Invocation
	err   error
	calls int
	query string
}

func (s *stubRetriever) Retrieve(_ context.Context, rawQuery, _ string) (*retrieval.Invocation, error) {
	s.calls++
	s.query = rawQuery
	if s.err != nil {
		return nil, s.err
	}
	return s.inv, nil
}

// collectEvents returns an EmitFunc appending to the given slice.
func collectEvents(events *[]Event) EmitFunc {
	return func(e Event) error {
		*events = append(*events, e)
		return nil
	}
}

func TestRunDirectAnswer(t *testing.T) {
	retriever := &stubRetriever{}
	o := newTestOrchestrator(t, retriever, scriptedCall{
		chunks: []string{"Hello! ", "How can I help?"},
		resp:   directAnswer("Hello! How can I help?"),
	})

	var events []Event
	result, err := o.Run(context.Background(), nil, "Hello", "folder-a", collectEvents(&events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Answer != "Hello! How can I help?" {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Invocation != nil {
		t.Error("direct answer must not create an invocation")
	}
	if retriever.calls != 0 {
		t.Errorf("retriever called %d times on small talk", retriever.calls)
	}
	for _, e := range events {
		if e.Type != EventText {
			t.Errorf("unexpected event type %d in direct-answer turn", e.Type)
		}
		if e.Text == "" {
			t.Error("empty text delta forwarded")
		}
	}
	if len(events) != 2 {
		t.Errorf("expected 2 text events, got %d", len(events))
	}
}

func TestRunDirectAnswerWithoutStreaming(t *testing.T) {
	// The model produced a final answer but streamed no chunks; the
	// answer must still reach the client as one text event.
	o := newTestOrchestrator(t, &stubRetriever{}, scriptedCall{
		resp: directAnswer("Hi there."),
	})

	var events []Event
	result, err := o.Run(context.Background(), nil, "Hello", "f", collectEvents(&events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(events) != 1 || events[0].Type != EventText || events[0].Text != "Hi there." {
		t.Errorf("expected one text event with the full answer, got %+v", events)
	}
	if result.Answer != "Hi there." {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestRunRetrievalPath(t *testing.T) {
	inv := &retrieval.Invocation{
		Query:             "What does the Q3 report say about revenue?",
		ReformulatedQuery: "q3 revenue",
		Results: []index.Document{{
			ID:      "doc1",
			Content: "Revenue grew 12% in Q3.",
			Metadata: map[string]string{
				index.MetaFilename:   "q3.pdf",
				index.MetaPage:       "4",
				index.MetaDocumentID: "doc1",
			},
		}},
		SerializedText: "> Document 1 q3.pdf\nRevenue grew 12% in Q3.",
	}
	retriever := &stubRetriever{inv: inv}
	o := newTestOrchestrator(t, retriever,
		scriptedCall{resp: toolCall("q3 revenue")},
		scriptedCall{
			chunks: []string{"Revenue grew ", "12% in Q3."},
			resp:   directAnswer("Revenue grew 12% in Q3."),
		},
	)

	var events []Event
	result, err := o.Run(context.Background(), nil, "What does the Q3 report say about revenue?", "folder-a", collectEvents(&events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if retriever.calls != 1 {
		t.Fatalf("retriever called %d times, want exactly once", retriever.calls)
	}
	if retriever.query != "q3 revenue" {
		t.Errorf("retriever got query %q, want the tool-call argument", retriever.query)
	}
	if result.Invocation != inv {
		t.Error("result must carry the turn's invocation")
	}
	if result.Answer != "Revenue grew 12% in Q3." {
		t.Errorf("answer = %q", result.Answer)
	}

	// Event order: tool start, tool end with invocation, then deltas.
	if len(events) < 3 {
		t.Fatalf("expected at least 3 events, got %d", len(events))
	}
	if events[0].Type != EventToolStart {
		t.Errorf("first event = %d, want tool start", events[0].Type)
	}
	if events[1].Type != EventToolEnd || events[1].Invocation != inv {
		t.Errorf("second event = %+v, want tool end with invocation", events[1])
	}
	for _, e := range events[2:] {
		if e.Type != EventText {
			t.Errorf("post-retrieval event type %d, want text", e.Type)
		}
	}
}

func TestRunRetrievalAnswerWithoutStreaming(t *testing.T) {
	// The answering model produced a final response but streamed no
	// chunks; the answer must still be emitted after the tool events.
	retriever := &stubRetriever{inv: &retrieval.Invocation{SerializedText: "> Document 1 q3.pdf\ncontext"}}
	o := newTestOrchestrator(t, retriever,
		scriptedCall{resp: toolCall("q3 revenue")},
		scriptedCall{resp: directAnswer("Revenue grew 12% in Q3.")},
	)

	var events []Event
	result, err := o.Run(context.Background(), nil, "What about revenue?", "f", collectEvents(&events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "Revenue grew 12% in Q3." {
		t.Errorf("answer = %q", result.Answer)
	}

	if len(events) != 3 {
		t.Fatalf("expected tool start, tool end, one text event; got %+v", events)
	}
	last := events[2]
	if last.Type != EventText || last.Text != "Revenue grew 12% in Q3." {
		t.Errorf("final event = %+v, want the full answer as one text event", last)
	}
}

func TestRunRetrievalFailureDegrades(t *testing.T) {
	retriever := &stubRetriever{err: fmt.Errorf("index offline: %w", index.ErrInitialization)}
	o := newTestOrchestrator(t, retriever,
		scriptedCall{resp: toolCall("q3 revenue")},
		scriptedCall{
			chunks: []string{"I could not find any documents."},
			resp:   directAnswer("I could not find any documents."),
		},
	)

	var events []Event
	result, err := o.Run(context.Background(), nil, "What about revenue?", "f", collectEvents(&events))
	if err != nil {
		t.Fatalf("retrieval failure must not abort the turn: %v", err)
	}

	if result.Invocation == nil {
		t.Fatal("degraded turn must still record an invocation")
	}
	if len(result.Invocation.Results) != 0 {
		t.Errorf("degraded invocation has %d results, want 0", len(result.Invocation.Results))
	}
	if result.Answer == "" {
		t.Error("degraded turn must still produce an answer")
	}

	var sawToolEnd bool
	for _, e := range events {
		if e.Type == EventToolEnd {
			sawToolEnd = true
			if len(e.Invocation.Results) != 0 {
				t.Errorf("tool-end carries %d results after failure", len(e.Invocation.Results))
			}
		}
	}
	if !sawToolEnd {
		t.Error("expected a tool-end event even on retrieval failure")
	}
}

func TestRunRouteFailure(t *testing.T) {
	o := newTestOrchestrator(t, &stubRetriever{}, scriptedCall{err: fmt.Errorf("model unavailable")})

	_, err := o.Run(context.Background(), nil, "Hello", "f", nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("Run() = %v, want ErrGeneration", err)
	}
}

func TestRunRespondFailure(t *testing.T) {
	retriever := &stubRetriever{inv: &retrieval.Invocation{}}
	o := newTestOrchestrator(t, retriever,
		scriptedCall{resp: toolCall("q")},
		scriptedCall{err: fmt.Errorf("model unavailable")},
	)

	_, err := o.Run(context.Background(), nil, "question", "f", nil)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("Run() = %v, want ErrGeneration", err)
	}
}

func TestRunStopsWhenEmitFails(t *testing.T) {
	clientGone := errors.New("client disconnected")
	o := newTestOrchestrator(t, &stubRetriever{}, scriptedCall{
		chunks: []string{"partial"},
		resp:   directAnswer("partial answer"),
	})

	_, err := o.Run(context.Background(), nil, "Hello", "f", func(Event) error {
		return clientGone
	})
	if !errors.Is(err, clientGone) {
		t.Fatalf("Run() = %v, want emit error propagated", err)
	}
}

func TestRunToolCallWithoutQueryFallsBackToUserMessage(t *testing.T) {
	retriever := &stubRetriever{inv: &retrieval.Invocation{}}
	o := newTestOrchestrator(t, retriever,
		scriptedCall{resp: &ai.ModelResponse{Message: ai.NewModelMessage(ai.NewToolRequestPart(&ai.ToolRequest{
			Name:  retrieveToolName,
			Input: map[string]any{},
		}))}},
		scriptedCall{resp: directAnswer("done")},
	)

	_, err := o.Run(context.Background(), nil, "what is in the contract?", "f", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if retriever.query != "what is in the contract?" {
		t.Errorf("retriever got %q, want raw user message fallback", retriever.query)
	}
}
