package openrouter

import "strings"

// Message is one role-tagged entry of the ordered chat sequence. Content is
// either a plain string or an ordered list of content parts (image + text).
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// SystemMessage builds a system turn with plain text content.
func SystemMessage(text string) Message {
	return Message{Role: "system", Content: text}
}

// TextMessage builds a text-only user turn.
func TextMessage(text string) Message {
	return Message{Role: "user", Content: text}
}

// VisionMessage builds a user turn carrying an inline image (as a data URI)
// followed by an instruction text.
func VisionMessage(dataURI, text string) Message {
	return Message{
		Role: "user",
		Content: []contentPart{
			{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			{Type: "text", Text: text},
		},
	}
}

// TextContent flattens the textual parts of the message. Image parts are
// skipped. Used for payload inspection in tests and logging.
func (m Message) TextContent() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []contentPart:
		var parts []string
		for _, p := range c {
			if p.Type == "text" && p.Text != "" {
				parts = append(parts, p.Text)
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// HasImage reports whether the message embeds an inline image part.
func (m Message) HasImage() bool {
	parts, ok := m.Content.([]contentPart)
	if !ok {
		return false
	}
	for _, p := range parts {
		if p.Type == "image_url" && p.ImageURL != nil {
			return true
		}
	}
	return false
}
