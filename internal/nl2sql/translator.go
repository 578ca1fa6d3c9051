package nl2sql

import (
	"context"
	"errors"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyChoices = errors.New("response has no choices")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the one response shape every chat backend returns, hosted or
// local. The generated text lives at output.choices[0].message.content.
type Response struct {
	Output    Output `json:"output"`
	RequestID string `json:"request_id,omitempty"`
}

type Output struct {
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// NewResponse wraps a single assistant completion.
func NewResponse(content string) Response {
	return Response{Output: Output{Choices: []Choice{{
		Message: Message{Role: RoleAssistant, Content: content},
	}}}}
}

// Content returns the first choice's message content.
func (r Response) Content() (string, error) {
	if len(r.Output.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return r.Output.Choices[0].Message.Content, nil
}

// ChatClient sends one chat request to a model backend.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (Response, error)
}

// Generator turns a question plus a table description into SQL. Failures
// yield an empty string; the elapsed time is always reported.
type Generator interface {
	Generate(ctx context.Context, question, tableDescription string) (string, time.Duration)
}
