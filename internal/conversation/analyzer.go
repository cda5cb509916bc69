package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Call analysis outcomes.
const (
	OutcomeMeetingBooked     = "meeting_booked"
	OutcomeCallbackScheduled = "callback_scheduled"
	OutcomeInterested        = "interested"
	OutcomeNotInterested     = "not_interested"
	OutcomeWrongNumber       = "wrong_number"
	OutcomeVoicemail         = "voicemail"
	OutcomeNoAnswer          = "no_answer"
)

// ScoreBreakdown grades the agent's performance per phase of the call,
// each 0-100.
type ScoreBreakdown struct {
	Discovery         int `json:"discovery"`
	Rapport           int `json:"rapport"`
	ObjectionHandling int `json:"objection_handling"`
	Closing           int `json:"closing"`
	Overall           int `json:"overall"`
}

// CallAnalysis is the model's post-call read of a finished transcript.
type CallAnalysis struct {
	Summary        string         `json:"summary"`
	Outcome        string         `json:"outcome"`
	Sentiment      string         `json:"sentiment"`
	Score          int            `json:"score"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
	Objections     []string       `json:"objections"`
	Topics         []string       `json:"topics"`
	NextSteps      string         `json:"next_steps"`
}

const analysisMaxTokens = 600

// TranscriptAnalyzer grades a completed call: outcome classification,
// sentiment, a scored breakdown, and the objections and topics that came
// up. It runs after the call ends and never touches live dialogue state.
type TranscriptAnalyzer struct {
	llm          LLMClient
	defaultModel string
}

func NewTranscriptAnalyzer(llm LLMClient, defaultModel string) *TranscriptAnalyzer {
	return &TranscriptAnalyzer{llm: llm, defaultModel: defaultModel}
}

// Analyze asks the model for a structured read of the transcript. Fields
// the model omits fall back to neutral defaults, so a parseable reply
// always yields a usable analysis.
func (a *TranscriptAnalyzer) Analyze(ctx context.Context, transcript []TranscriptEntry, objective string) (CallAnalysis, error) {
	if a.llm == nil {
		return CallAnalysis{}, fmt.Errorf("%w: no language model configured", ErrGenerationFailure)
	}
	if len(transcript) == 0 {
		return CallAnalysis{}, fmt.Errorf("%w: empty transcript", ErrGenerationFailure)
	}

	resp, err := a.llm.Complete(ctx, LLMRequest{
		Model:       a.defaultModel,
		System:      []string{buildAnalysisPrompt(objective)},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: flattenTranscript(transcript)}},
		MaxTokens:   analysisMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return CallAnalysis{}, fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}

	var raw struct {
		Summary        string `json:"summary"`
		Outcome        string `json:"outcome"`
		Sentiment      string `json:"sentiment"`
		Score          int    `json:"score"`
		ScoreBreakdown struct {
			Discovery         int `json:"discovery"`
			Rapport           int `json:"rapport"`
			ObjectionHandling int `json:"objection_handling"`
			Closing           int `json:"closing"`
			Overall           int `json:"overall"`
		} `json:"scoreBreakdown"`
		Objections []string `json:"objections"`
		Topics     []string `json:"topics"`
		NextSteps  string   `json:"nextSteps"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text)), &raw); err != nil {
		return CallAnalysis{}, fmt.Errorf("%w: malformed analysis: %v", ErrGenerationFailure, err)
	}

	analysis := CallAnalysis{
		Summary:   raw.Summary,
		Outcome:   raw.Outcome,
		Sentiment: raw.Sentiment,
		Score:     raw.Score,
		ScoreBreakdown: ScoreBreakdown{
			Discovery:         raw.ScoreBreakdown.Discovery,
			Rapport:           raw.ScoreBreakdown.Rapport,
			ObjectionHandling: raw.ScoreBreakdown.ObjectionHandling,
			Closing:           raw.ScoreBreakdown.Closing,
			Overall:           raw.ScoreBreakdown.Overall,
		},
		Objections: raw.Objections,
		Topics:     raw.Topics,
		NextSteps:  raw.NextSteps,
	}
	if analysis.Summary == "" {
		analysis.Summary = "Call completed."
	}
	if analysis.Outcome == "" {
		analysis.Outcome = OutcomeNoAnswer
	}
	if analysis.Sentiment == "" {
		analysis.Sentiment = "neutral"
	}
	if analysis.Score == 0 {
		analysis.Score = 50
	}
	if analysis.NextSteps == "" {
		analysis.NextSteps = "No specific next steps identified."
	}
	return analysis, nil
}

func buildAnalysisPrompt(objective string) string {
	if objective == "" {
		objective = "productive conversation"
	}
	var sb strings.Builder
	sb.WriteString("Analyze this sales call transcript. The agent's objective was: ")
	sb.WriteString(fmt.Sprintf("%q.\n\n", objective))
	sb.WriteString("Return a JSON object with:\n")
	sb.WriteString("- summary: 2-3 sentence summary\n")
	sb.WriteString("- outcome: one of: meeting_booked, callback_scheduled, interested, not_interested, wrong_number, voicemail, no_answer\n")
	sb.WriteString("- sentiment: positive, neutral, or negative\n")
	sb.WriteString("- score: 0-100 overall score\n")
	sb.WriteString("- scoreBreakdown: { discovery: 0-100, rapport: 0-100, objection_handling: 0-100, closing: 0-100, overall: 0-100 }\n")
	sb.WriteString("- objections: array of objections raised by the contact\n")
	sb.WriteString("- topics: array of key topics discussed\n")
	sb.WriteString("- nextSteps: recommended next steps\n\n")
	sb.WriteString("Return ONLY valid JSON, no markdown.")
	return sb.String()
}

func flattenTranscript(transcript []TranscriptEntry) string {
	lines := make([]string, 0, len(transcript))
	for _, e := range transcript {
		speaker := "Contact"
		if e.Speaker == SpeakerAgent {
			speaker = "Agent"
		}
		lines = append(lines, speaker+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}

// stripCodeFence tolerates models that wrap their JSON in a markdown fence
// despite being told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
