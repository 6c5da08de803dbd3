package stream

import (
	"context"
	"log/slog"

	"github.com/recaplabs/recap/internal/agent"
)

// FrameWriter delivers frames to the transport.
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame Frame) error
}

// Projector consumes one turn's orchestrator events and projects them
// into transport frames. Text deltas are forwarded in arrival order;
// the citation frame is emitted once, on retrieval completion, never on
// token events. One Projector serves exactly one turn.
type Projector struct {
	writer FrameWriter
	logger *slog.Logger

	citations []Citation
}

// NewProjector creates a Projector writing to w.
func NewProjector(w FrameWriter, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{writer: w, logger: logger}
}

// Emit returns the event callback wired into the orchestrator. Write
// failures propagate so the orchestrator stops the turn when the client
// disconnects.
func (p *Projector) Emit(ctx context.Context) agent.EmitFunc {
	return func(event agent.Event) error {
		switch event.Type {
		case agent.EventText:
			if event.Text == "" {
				return nil
			}
			return p.writer.WriteFrame(ctx, MessageFrame(event.Text))

		case agent.EventToolEnd:
			p.citations = Citations(event.Invocation)
			if len(p.citations) == 0 {
				// Zero documents means zero citation frames.
				return nil
			}
			p.logger.Debug("emitting citations", "count", len(p.citations))
			return p.writer.WriteFrame(ctx, CitationFrame(p.citations))

		default:
			return nil
		}
	}
}

// Citations returns the citations projected for this turn, in emission
// order. Empty when the turn retrieved nothing.
func (p *Projector) Citations() []Citation {
	return p.citations
}

// Done sends the terminal success frame.
func (p *Projector) Done(ctx context.Context) error {
	return p.writer.WriteFrame(ctx, DoneFrame())
}

// Error sends the terminal error frame. No frames may follow it.
func (p *Projector) Error(ctx context.Context, message string) error {
	return p.writer.WriteFrame(ctx, ErrorFrame(message))
}
