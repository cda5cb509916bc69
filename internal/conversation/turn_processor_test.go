package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNextReplyUsesAgentModelAndPrompt(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{{Text: "Absolutely."}}}
	p := NewTurnProcessor(llm, "default-model")

	agent := AgentProfile{
		ID:           "agent-1",
		Name:         "Jordan",
		SystemPrompt: "You sell software to {{company}}.",
		Model:        "agent-model",
		Objective:    "Book a demo",
		KnowledgeBase: []KnowledgeEntry{
			{Source: "pricing.pdf", Content: "Starter plan is $49/month."},
		},
		ObjectionResponses: map[string]string{
			"too expensive": "Mention the starter plan.",
		},
	}
	session := NewCallSession("call-1", agent, Contact{Name: "Alex", Company: "Acme", Notes: "Asked for a callback in July."}, time.Now())
	session.AppendTurn(SpeakerContact, "how much does it cost?", time.Now())

	reply, err := p.NextReply(context.Background(), session)
	if err != nil {
		t.Fatalf("next reply: %v", err)
	}
	if reply != "Absolutely." {
		t.Errorf("reply: got %q", reply)
	}
	if llm.lastReq.Model != "agent-model" {
		t.Errorf("model: got %q, want agent override", llm.lastReq.Model)
	}
	if len(llm.lastReq.System) != 1 {
		t.Fatalf("system blocks: got %d", len(llm.lastReq.System))
	}
	system := llm.lastReq.System[0]
	for _, fragment := range []string{"Acme", "Book a demo", "Starter plan is $49/month.", "too expensive", "Asked for a callback in July."} {
		if !strings.Contains(system, fragment) {
			t.Errorf("system prompt missing %q", fragment)
		}
	}
	if strings.Contains(system, "{{company}}") {
		t.Error("contact placeholder not resolved in system prompt")
	}
}

func TestNextReplyDefaultsModelAndTokens(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{{Text: "ok"}}}
	p := NewTurnProcessor(llm, "default-model")

	session := NewCallSession("call-1", AgentProfile{Name: "Jordan"}, Contact{}, time.Now())
	if _, err := p.NextReply(context.Background(), session); err != nil {
		t.Fatalf("next reply: %v", err)
	}
	if llm.lastReq.Model != "default-model" {
		t.Errorf("model: got %q", llm.lastReq.Model)
	}
	if llm.lastReq.MaxTokens != spokenReplyMaxTokens {
		t.Errorf("max tokens: got %d, want %d", llm.lastReq.MaxTokens, spokenReplyMaxTokens)
	}
}

func TestNextReplyAccumulatesUsage(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{{
		Text:  "Sure thing.",
		Usage: TokenUsage{InputTokens: 200, OutputTokens: 12},
	}}}
	p := NewTurnProcessor(llm, "default-model")

	session := NewCallSession("call-1", AgentProfile{Name: "Jordan"}, Contact{}, time.Now())
	session.InputTokens = 100
	reply, err := p.NextReply(context.Background(), session)
	if err != nil {
		t.Fatalf("next reply: %v", err)
	}
	if session.InputTokens != 300 {
		t.Errorf("input tokens: got %d, want 300", session.InputTokens)
	}
	if session.OutputTokens != 12 {
		t.Errorf("output tokens: got %d", session.OutputTokens)
	}
	if session.TTSChars != int64(len(reply)) {
		t.Errorf("tts chars: got %d, want %d", session.TTSChars, len(reply))
	}
}

func TestNextReplyBlankModelOutput(t *testing.T) {
	llm := &stubLLMClient{responses: []LLMResponse{{Text: "   "}}}
	p := NewTurnProcessor(llm, "default-model")

	session := NewCallSession("call-1", AgentProfile{Name: "Jordan"}, Contact{}, time.Now())
	reply, err := p.NextReply(context.Background(), session)
	if err != nil {
		t.Fatalf("next reply: %v", err)
	}
	if reply == "" {
		t.Error("blank model output must resolve to a spoken line")
	}
}

func TestNextReplyWrapsFailure(t *testing.T) {
	llm := &stubLLMClient{err: errors.New("throttled")}
	p := NewTurnProcessor(llm, "default-model")

	session := NewCallSession("call-1", AgentProfile{Name: "Jordan"}, Contact{}, time.Now())
	if _, err := p.NextReply(context.Background(), session); !errors.Is(err, ErrGenerationFailure) {
		t.Fatalf("expected ErrGenerationFailure, got %v", err)
	}
}

func TestNextReplyNoModelConfigured(t *testing.T) {
	p := NewTurnProcessor(nil, "")
	session := NewCallSession("call-1", AgentProfile{}, Contact{}, time.Now())
	if _, err := p.NextReply(context.Background(), session); !errors.Is(err, ErrGenerationFailure) {
		t.Fatalf("expected ErrGenerationFailure, got %v", err)
	}
}
