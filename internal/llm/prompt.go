package llm

import (
	"errors"
	"strings"

	"github.com/RichardoC/padchat/internal/models"
)

// ErrNoPrompt is returned when neither a message nor any turns were given.
var ErrNoPrompt = errors.New("no message provided")

// Turn is one entry of the chat history sent by the client.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildPrompt assembles the text sent to the model. A direct message wins;
// otherwise the history is flattened into a transcript ending in an
// "Assistant:" cue.
func BuildPrompt(message string, turns []Turn) (string, error) {
	if message != "" {
		return message, nil
	}
	if len(turns) == 0 {
		return "", ErrNoPrompt
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(roleLabel(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	b.WriteString("\nAssistant:")
	return b.String(), nil
}

func roleLabel(role string) string {
	if role == string(models.RoleUser) {
		return "User"
	}
	return "Assistant"
}
