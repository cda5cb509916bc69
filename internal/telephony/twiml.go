package telephony

import (
	"fmt"
	"net/url"

	"github.com/twilio/twilio-go/twiml"
)

const (
	defaultVoice        = "Polly.Matthew"
	gatherSpeechModel   = "experimental_conversations"
	gatherSpeechTimeout = "auto"

	noInputGoodbye = "I didn't catch that. Thank you for your time. Goodbye!"
)

// ConversationMarkupParams describes one turn of provider markup: speak the
// agent's line, then listen for the contact's reply.
type ConversationMarkupParams struct {
	BaseURL string
	CallID  string
	AgentID string
	Message string
	// Voice overrides the synthesis voice. Empty uses the default.
	Voice string
	// EndCall renders a goodbye with no gather; the provider hangs up
	// after speaking.
	EndCall bool
}

// RenderConversationMarkup produces the TwiML for one conversational turn.
func RenderConversationMarkup(p ConversationMarkupParams) string {
	voice := p.Voice
	if voice == "" {
		voice = defaultVoice
	}

	verbs := []twiml.Element{twiml.VoiceSay{Message: p.Message, Voice: voice}}
	if !p.EndCall {
		action := fmt.Sprintf("%s/webhooks/twilio/gather?callId=%s&agentId=%s",
			p.BaseURL, url.QueryEscape(p.CallID), url.QueryEscape(p.AgentID))
		verbs = append(verbs,
			twiml.VoiceGather{
				Input:         "speech",
				SpeechTimeout: gatherSpeechTimeout,
				SpeechModel:   gatherSpeechModel,
				Action:        action,
				Method:        "POST",
			},
			// Reached only when the gather times out with no speech at all.
			twiml.VoiceSay{Message: noInputGoodbye, Voice: voice},
		)
	}
	verbs = append(verbs, twiml.VoiceHangup{})
	return renderVoice(verbs)
}

// RenderHangupMarkup speaks a final line and hangs up.
func RenderHangupMarkup(message, voice string) string {
	return RenderConversationMarkup(ConversationMarkupParams{
		Message: message,
		Voice:   voice,
		EndCall: true,
	})
}

// RenderRejectMarkup hangs up immediately without speaking. Used when a
// webhook arrives for a call the engine knows nothing about.
func RenderRejectMarkup() string {
	return renderVoice([]twiml.Element{twiml.VoiceHangup{}})
}

func renderVoice(verbs []twiml.Element) string {
	markup, err := twiml.Voice(verbs)
	if err != nil {
		// Serializing an in-memory document cannot realistically fail;
		// a bare hangup still beats dead air if it ever does.
		return `<?xml version="1.0" encoding="UTF-8"?><Response><Hangup/></Response>`
	}
	return markup
}
