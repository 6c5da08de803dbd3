package agent

import (
	"testing"

	"github.com/firebase/genkit/go/ai"
)

func TestVisibleTurnsFiltersToolCallTurns(t *testing.T) {
	history := []Turn{
		{Role: RoleSystem, Content: "be concise"},
		{Role: RoleUser, Content: "what is in the report?"},
		{Role: RoleAssistant, Content: "", HadToolCall: true},
		{Role: RoleAssistant, Content: "The report covers Q3 revenue."},
		{Role: RoleUser, Content: "and expenses?"},
	}

	visible := visibleTurns(history)

	want := []Turn{
		{Role: RoleSystem, Content: "be concise"},
		{Role: RoleUser, Content: "what is in the report?"},
		{Role: RoleAssistant, Content: "The report covers Q3 revenue."},
		{Role: RoleUser, Content: "and expenses?"},
	}
	if len(visible) != len(want) {
		t.Fatalf("got %d turns, want %d", len(visible), len(want))
	}
	for i := range want {
		if visible[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, visible[i], want[i])
		}
	}

	// Pure function: the input must be untouched.
	if len(history) != 5 || !history[2].HadToolCall {
		t.Error("visibleTurns mutated its input")
	}
}

func TestVisibleTurnsEmptyHistory(t *testing.T) {
	if got := visibleTurns(nil); len(got) != 0 {
		t.Errorf("visibleTurns(nil) = %v, want empty", got)
	}
}

func TestToMessagesRoles(t *testing.T) {
	msgs := toMessages([]Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
		{Role: RoleSystem, Content: "rules"},
	})

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	wantRoles := []ai.Role{ai.RoleUser, ai.RoleModel, ai.RoleSystem}
	wantText := []string{"hi", "hello", "rules"}
	for i, msg := range msgs {
		if msg.Role != wantRoles[i] {
			t.Errorf("message %d role = %q, want %q", i, msg.Role, wantRoles[i])
		}
		if msg.Text() != wantText[i] {
			t.Errorf("message %d text = %q, want %q", i, msg.Text(), wantText[i])
		}
	}
}
