package conversation

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{[^}]*\}\}`)

// RenderGreeting substitutes the agent and contact placeholders in a
// greeting template. Supported placeholders: {{agent_name}}, {{contact_name}},
// {{name}}, {{company}}. Anything left unresolved is stripped so the caller
// never hears a raw template token.
func RenderGreeting(agent AgentProfile, contact Contact) string {
	greeting := agent.Greeting
	if strings.TrimSpace(greeting) == "" {
		greeting = "Hi, this is {{agent_name}}. Do you have a quick minute?"
	}

	greeting = strings.ReplaceAll(greeting, "{{agent_name}}", agent.Name)
	if contact.Name != "" {
		greeting = strings.ReplaceAll(greeting, "{{contact_name}}", contact.Name)
		greeting = strings.ReplaceAll(greeting, "{{name}}", contact.Name)
	}
	if contact.Company != "" {
		greeting = strings.ReplaceAll(greeting, "{{company}}", contact.Company)
	}

	greeting = placeholderPattern.ReplaceAllString(greeting, "")
	greeting = strings.Join(strings.Fields(greeting), " ")
	return strings.TrimSpace(greeting)
}
