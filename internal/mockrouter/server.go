package mockrouter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Call records one chat-completions request made to the mock service.
type Call struct {
	Model string
	// Prompt is the flattened text content of all messages, for payload
	// inspection in tests.
	Prompt string
	// HasImage reports whether any message carried an inline image part.
	HasImage bool
	// Body is the raw request payload.
	Body []byte
}

// Response is one scripted reply. When Body is empty, Text is wrapped into a
// chat-completion envelope.
type Response struct {
	Status int
	Body   string
	Text   string
	Delay  time.Duration
}

// Server implements a minimal OpenRouter-compatible chat-completions
// surface. Responses are replayed per model from scripted queues; when a
// queue is empty the server answers 200 with DefaultText.
type Server struct {
	mu     sync.Mutex
	calls  []Call
	queues map[string][]Response

	expectedAuthorization string
	defaultText           string
}

// New constructs a mock server answering "OK" until scripted otherwise.
func New() *Server {
	return &Server{
		queues:      make(map[string][]Response),
		defaultText: "OK",
	}
}

// RequireBearerToken enforces that requests carry a matching Authorization
// header. If token is empty, authorization is not enforced.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// SetDefaultText changes the reply used when a model's queue is empty.
func (s *Server) SetDefaultText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultText = text
}

// Enqueue appends scripted responses for the given model.
func (s *Server) Enqueue(model string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[model] = append(s.queues[model], responses...)
}

// Calls returns a copy of all recorded calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of requests made for the given model, or all
// requests when model is empty.
func (s *Server) CallCount(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if model == "" {
		return len(s.calls)
	}
	n := 0
	for _, c := range s.calls {
		if c.Model == model {
			n++
		}
	}
	return n
}

// Completion wraps text into a chat-completion response envelope.
func Completion(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": text}},
		},
		"usage": map[string]any{
			"prompt_tokens":     12,
			"completion_tokens": 34,
			"total_tokens":      46,
		},
	})
	return string(b)
}

type receivedMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type receivedRequest struct {
	Model    string            `json:"model"`
	Messages []receivedMessage `json:"messages"`
}

// Handler returns an http.Handler serving the mock API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	return mux
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var req receivedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	prompt, hasImage := flattenMessages(req.Messages)

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Model:    req.Model,
		Prompt:   prompt,
		HasImage: hasImage,
		Body:     body,
	})

	if s.expectedAuthorization != "" && r.Header.Get("Authorization") != s.expectedAuthorization {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	var resp Response
	queue := s.queues[req.Model]
	if len(queue) > 0 {
		resp = queue[0]
		s.queues[req.Model] = queue[1:]
	} else {
		resp = Response{Status: http.StatusOK, Text: s.defaultText}
	}
	s.mu.Unlock()

	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	body2 := resp.Body
	if body2 == "" {
		body2 = Completion(resp.Text)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body2)
}

func flattenMessages(msgs []receivedMessage) (prompt string, hasImage bool) {
	var parts []string
	for _, m := range msgs {
		var text string
		if err := json.Unmarshal(m.Content, &text); err == nil {
			parts = append(parts, text)
			continue
		}
		var content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(m.Content, &content); err != nil {
			continue
		}
		for _, c := range content {
			switch c.Type {
			case "text":
				parts = append(parts, c.Text)
			case "image_url":
				hasImage = true
			}
		}
	}
	return strings.Join(parts, "\n"), hasImage
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":%q}}`, status, message)
}
