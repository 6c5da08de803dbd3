package stream

// Frame types on the wire. "done" and "error" are terminal and mutually
// exclusive per turn.
const (
	FrameMessage  = "message"
	FrameCitation = "citation"
	FrameDone     = "done"
	FrameError    = "error"
)

// Frame is one transport event sent to the client.
type Frame struct {
	Type      string     `json:"type"`
	Content   string     `json:"content,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
	Message   string     `json:"message,omitempty"`
}

// MessageFrame wraps one answer text delta.
func MessageFrame(content string) Frame {
	return Frame{Type: FrameMessage, Content: content}
}

// CitationFrame wraps the turn's citation list.
func CitationFrame(citations []Citation) Frame {
	return Frame{Type: FrameCitation, Citations: citations}
}

// DoneFrame terminates a successful turn.
func DoneFrame() Frame {
	return Frame{Type: FrameDone}
}

// ErrorFrame terminates a failed turn.
func ErrorFrame(message string) Frame {
	return Frame{Type: FrameError, Message: message}
}
