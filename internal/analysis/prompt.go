package analysis

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
)

// DefaultPersona is the built-in companion persona. Operators can override it
// via chat.persona in the config file.
const DefaultPersona = `You are MindMate, a warm and empathetic mental health support chatbot.

Your personality:
- Compassionate, non-judgmental, supportive
- You validate feelings and show genuine care
- You ask thoughtful follow-up questions
- You remember the conversation context`

// outputContract is the JSON Schema for the payload the model must emit,
// derived from [wirePayload] so the prompt never drifts from the normalizer.
var outputContract = func() string {
	r := jsonschema.Reflector{
		DoNotReference: true,
		Anonymous:      true,
	}
	schema := r.Reflect(&wirePayload{})
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		panic("analysis: marshal output schema: " + err.Error())
	}
	return string(b)
}()

// SystemPrompt assembles the system instruction sent with every model call:
// the persona followed by the strict output-format contract. An empty persona
// selects [DefaultPersona].
func SystemPrompt(persona string) string {
	if persona == "" {
		persona = DefaultPersona
	}
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nRespond with ONLY a single JSON object (no other text before or after) matching this schema:\n\n")
	b.WriteString(outputContract)
	b.WriteString("\n\nBe conversational and natural, not robotic.")
	return b.String()
}
