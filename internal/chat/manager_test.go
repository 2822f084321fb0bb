package chat

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestProcessRecordsBothSides(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(WithClock(func() time.Time { return fixed }))

	inputs := []string{"help", "Create a token called Moon Rocket with symbol MOON", "good morning"}
	for _, in := range inputs {
		m.Process(context.Background(), in)
	}

	msgs := m.Messages()
	if len(msgs) != 2*len(inputs) {
		t.Fatalf("expected %d messages, got %d", 2*len(inputs), len(msgs))
	}
	seen := make(map[string]struct{}, len(msgs))
	for i, msg := range msgs {
		want := SenderUser
		if i%2 == 1 {
			want = SenderAssistant
		}
		if msg.Sender != want {
			t.Fatalf("message %d: expected sender %s, got %s", i, want, msg.Sender)
		}
		if !msg.Timestamp.Equal(fixed) {
			t.Fatalf("message %d: unexpected timestamp %v", i, msg.Timestamp)
		}
		if _, dup := seen[msg.ID]; dup || msg.ID == "" {
			t.Fatalf("message %d: id %q is empty or duplicated", i, msg.ID)
		}
		seen[msg.ID] = struct{}{}
	}
	if msgs[0].Content != "help" {
		t.Fatalf("expected user content preserved, got %q", msgs[0].Content)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	m := NewManager()
	m.Process(context.Background(), "help")

	msgs := m.Messages()
	msgs[0].Content = "tampered"
	if got := m.Messages()[0].Content; got != "help" {
		t.Fatalf("history mutated through copy: %q", got)
	}
}

func TestClearResetsHistory(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := NewManager(WithClock(func() time.Time { return fixed }))
	m.Process(context.Background(), "help")
	m.Clear()
	if n := len(m.Messages()); n != 0 {
		t.Fatalf("expected empty history, got %d", n)
	}
	m.Process(context.Background(), "show my stats")
	msgs := m.Messages()
	if n := len(msgs); n != 2 {
		t.Fatalf("expected 2 messages after clear, got %d", n)
	}
	if !msgs[0].Timestamp.Equal(fixed) {
		t.Fatalf("clear should keep the configured clock, got %v", msgs[0].Timestamp)
	}
}

func TestCreateTokenResponse(t *testing.T) {
	m := NewManager()

	resp := m.Process(context.Background(), "Create a token called Moon Rocket with symbol MOON")
	if !resp.HasAction(ActionCreateToken) || resp.Token == nil {
		t.Fatalf("expected create_token action with params, got %+v", resp)
	}
	if resp.Token.Name != "Moon Rocket" || resp.Token.Symbol != "MOON" {
		t.Fatalf("unexpected token params %+v", resp.Token)
	}
	if want := `I'll help you create the token "Moon Rocket" with symbol MOON. Let me process this for you...`; resp.Message != want {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	resp = m.Process(context.Background(), "Create token")
	if len(resp.Actions) != 0 || resp.Token != nil {
		t.Fatalf("expected clarifying prompt without actions, got %+v", resp)
	}
	if !strings.Contains(resp.Message, "Token name") {
		t.Fatalf("expected prompt asking for token name, got %q", resp.Message)
	}
}

func TestClaimResponseIgnoresPool(t *testing.T) {
	resp := NewManager().Process(context.Background(), "claim fees from meteora")
	if len(resp.Actions) != 1 || resp.Actions[0] != ActionClaimFees {
		t.Fatalf("expected single claim_fees action, got %v", resp.Actions)
	}
	if resp.Token != nil || resp.Distribution != nil {
		t.Fatalf("claim response should carry no data, got %+v", resp)
	}
}

func TestDistributeResponse(t *testing.T) {
	m := NewManager()

	resp := m.Process(context.Background(), "Distribute 1 SOL equally to 10 users")
	if !resp.HasAction(ActionDistributeFunds) || resp.Distribution == nil {
		t.Fatalf("expected distribute action with plan, got %+v", resp)
	}
	if resp.Distribution.UserCount != 10 || resp.Distribution.AmountPerUser != 0.1 {
		t.Fatalf("unexpected plan %+v", resp.Distribution)
	}
	if !strings.Contains(resp.Message, "10 recipients") {
		t.Fatalf("unexpected message %q", resp.Message)
	}

	resp = m.Process(context.Background(), "distribute my earnings")
	if len(resp.Actions) != 0 || !strings.Contains(resp.Message, "recipient addresses") {
		t.Fatalf("expected clarifying prompt, got %+v", resp)
	}
}

func TestStatusHelpUnknown(t *testing.T) {
	m := NewManager()

	if resp := m.Process(context.Background(), "What's my balance?"); !resp.HasAction(ActionCheckStatus) {
		t.Fatalf("expected check_status action, got %v", resp.Actions)
	}
	if resp := m.Process(context.Background(), "Show me all available commands"); len(resp.Actions) != 0 || !strings.Contains(resp.Message, "Creator SDK Commands") {
		t.Fatalf("unexpected help response %+v", resp)
	}
	if resp := m.Process(context.Background(), "good morning"); len(resp.Actions) != 0 || !strings.HasPrefix(resp.Message, "I'm not sure") {
		t.Fatalf("unexpected fallback response %+v", resp)
	}
}
