package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Writer sends frames over Server-Sent Events, one data-only event per
// frame, flushing after each so deltas reach the client immediately.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps an http.ResponseWriter for SSE streaming and sets the
// response headers.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flusher interface")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteFrame sends one frame. A canceled context or a failed write
// means the client is gone; the caller must stop emitting.
func (w *Writer) WriteFrame(ctx context.Context, frame Frame) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("client disconnected: %w", ctx.Err())
	default:
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	w.flusher.Flush()
	return nil
}
