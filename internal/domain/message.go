package domain

import (
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message guarda un mensaje de chat con sus partes (texto, razonamiento, herramientas, archivos).
type Message struct {
	ID          string        `json:"id"`
	ChatID      string        `json:"chatId"`
	Role        string        `json:"role"`
	Parts       []MessagePart `json:"parts"`
	Attachments []Attachment  `json:"attachments"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// MessagePart sigue el formato de partes de mensaje que consume el front end.
type MessagePart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	State      string `json:"state,omitempty"`
	ToolCallID string `json:"toolCallId,omitempty"`
	Input      any    `json:"input,omitempty"`
	Output     any    `json:"output,omitempty"`
	MediaType  string `json:"mediaType,omitempty"`
	URL        string `json:"url,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

const (
	PartText      = "text"
	PartReasoning = "reasoning"
	PartFile      = "file"
)

type Attachment struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// Text concatena las partes de texto del mensaje.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type != PartText || p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
