package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Title generation constants.
const (
	titleTimeout       = 5 * time.Second
	titleInputMaxRunes = 500
	titleMaxRunes      = 80
)

var titlePrompt = fmt.Sprintf(`Generate a concise title (max %d characters) for a conversation based on this first message.`, titleMaxRunes) + `
The title should capture the main topic or intent.
Return ONLY the title text, no quotes, no explanations, no punctuation at the end.

Message: %s

Title:`

// Titler names a thread from its first user message.
type Titler struct {
	modelName string
	logger    *slog.Logger

	// generate performs the model call. Swapped in tests.
	generate func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error)
}

// NewTitler creates a Titler using the given Genkit instance and
// provider-qualified model name.
func NewTitler(g *genkit.Genkit, modelName string, logger *slog.Logger) *Titler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Titler{
		modelName: modelName,
		logger:    logger,
		generate: func(ctx context.Context, opts ...ai.GenerateOption) (*ai.ModelResponse, error) {
			return genkit.Generate(ctx, g, opts...)
		},
	}
}

// Title generates a concise thread title from the user's first message,
// falling back to simple truncation when the model call fails. Always
// returns a usable title.
func (t *Titler) Title(ctx context.Context, userMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	input := userMessage
	if runes := []rune(input); len(runes) > titleInputMaxRunes {
		input = string(runes[:titleInputMaxRunes]) + "..."
	}

	opts := []ai.GenerateOption{
		ai.WithPrompt(titlePrompt, input),
	}
	if t.modelName != "" {
		opts = append(opts, ai.WithModelName(t.modelName))
	}

	resp, err := t.generate(ctx, opts...)
	if err != nil {
		t.logger.Debug("title generation failed, truncating", "error", err)
		return truncateTitle(userMessage)
	}

	title := strings.TrimSpace(resp.Text())
	if title == "" {
		return truncateTitle(userMessage)
	}
	return truncateTitle(title)
}

// truncateTitle trims to the title length limit, with an ellipsis when
// text was cut.
func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= titleMaxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:titleMaxRunes-3])) + "..."
}
