package conversation

import (
	"context"
	"fmt"
	"strings"
)

const spokenReplyMaxTokens = 150

// TurnProcessor produces the agent's next line from the transcript so far.
// It holds no per-call state; everything it needs arrives in the session.
type TurnProcessor struct {
	llm          LLMClient
	defaultModel string
}

func NewTurnProcessor(llm LLMClient, defaultModel string) *TurnProcessor {
	return &TurnProcessor{llm: llm, defaultModel: defaultModel}
}

// NextReply generates the agent's reply to the contact's latest utterance,
// which the caller has already appended to the session. Usage is recorded
// on the session's accumulators. Failures are wrapped as ErrGenerationFailure.
func (p *TurnProcessor) NextReply(ctx context.Context, session *CallSession) (string, error) {
	if p.llm == nil {
		return "", fmt.Errorf("%w: no language model configured", ErrGenerationFailure)
	}

	model := session.Agent.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := session.Agent.MaxTokens
	if maxTokens <= 0 {
		maxTokens = spokenReplyMaxTokens
	}

	resp, err := p.llm.Complete(ctx, LLMRequest{
		Model:       model,
		System:      []string{buildCallSystemPrompt(session.Agent, session.Contact)},
		Messages:    session.Messages,
		MaxTokens:   maxTokens,
		Temperature: session.Agent.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		reply = "I'm sorry, could you repeat that?"
	}

	session.InputTokens += int64(resp.Usage.InputTokens)
	session.OutputTokens += int64(resp.Usage.OutputTokens)
	session.TTSChars += int64(len(reply))

	return reply, nil
}

// buildCallSystemPrompt assembles the system prompt for one call: the
// agent's base prompt with contact placeholders resolved, spoken-dialogue
// rules, then knowledge base, objection handling, and contact notes.
func buildCallSystemPrompt(agent AgentProfile, contact Contact) string {
	var sb strings.Builder

	base := agent.SystemPrompt
	if contact.Name != "" {
		base = strings.ReplaceAll(base, "{{contact_name}}", contact.Name)
	}
	if contact.Company != "" {
		base = strings.ReplaceAll(base, "{{company}}", contact.Company)
	}
	sb.WriteString(base)

	objective := agent.Objective
	if objective == "" {
		objective = "Have a productive conversation"
	}
	sb.WriteString("\n\nIMPORTANT RULES:\n")
	sb.WriteString("- You are on a live phone call. Keep responses to 1-3 short sentences.\n")
	sb.WriteString("- Use spoken language, not written. No lists, no markdown, no URLs.\n")
	sb.WriteString("- Be conversational, not robotic.\n")
	sb.WriteString("- If the person wants to end the call, say goodbye politely.\n")
	sb.WriteString("- Never make up information you don't have.\n")
	sb.WriteString("- Your objective: " + objective)

	if len(agent.KnowledgeBase) > 0 {
		sb.WriteString("\n\nKNOWLEDGE BASE:")
		for _, kb := range agent.KnowledgeBase {
			sb.WriteString(fmt.Sprintf("\n[%s]: %s", kb.Source, kb.Content))
		}
	}

	if len(agent.ObjectionResponses) > 0 {
		sb.WriteString("\n\nOBJECTION HANDLING:")
		for objection, response := range agent.ObjectionResponses {
			sb.WriteString(fmt.Sprintf("\n- If they say %q: %s", objection, response))
		}
	}

	if contact.Notes != "" {
		sb.WriteString("\n\nPREVIOUS NOTES ABOUT THIS CONTACT:\n" + contact.Notes)
	}

	return sb.String()
}
