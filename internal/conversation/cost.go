package conversation

import (
	"math"
	"time"
)

// Per-unit provider rates used for the cost accumulator. These mirror the
// published list prices for the wired providers.
const (
	telephonyRatePerMin = 0.04
	sttRatePerMin       = 0.0077
	llmInputRatePer1K   = 0.00015
	llmOutputRatePer1K  = 0.0006
	ttsRatePer1KChars   = 0.015
)

// computeCost converts the session's accumulated usage into a dollar
// breakdown, rounded to four decimal places per component.
func computeCost(s *CallSession, duration time.Duration) CostBreakdown {
	minutes := duration.Minutes()

	cost := CostBreakdown{
		Telephony: round4(minutes * telephonyRatePerMin),
		STT:       round4(minutes * sttRatePerMin),
		LLM:       round4(float64(s.InputTokens)/1000*llmInputRatePer1K + float64(s.OutputTokens)/1000*llmOutputRatePer1K),
		TTS:       round4(float64(s.TTSChars) / 1000 * ttsRatePer1KChars),
	}
	cost.Total = round4(cost.Telephony + cost.STT + cost.LLM + cost.TTS)
	return cost
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
