package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ResumeAI/pkg/config"

	"github.com/tidwall/gjson"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrMissingAPIKey = errors.New("llm api key is not set")
	ErrEmptyReply    = errors.New("llm returned an empty reply")
)

type ChatMessage struct {
	Role string
	Text string
}

// ChatClient is a chat-completion backend. Stream forwards chunks to
// onDelta as they arrive and returns the full reply.
type ChatClient interface {
	Chat(ctx context.Context, chat []ChatMessage) (string, error)
	Stream(ctx context.Context, chat []ChatMessage, onDelta func(string)) (string, error)
}

// NewChatClient builds the provider named by config.LLMProvider.
func NewChatClient() (ChatClient, error) {
	switch config.LLMProvider {
	case "openai":
		return NewOpenAIService(config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIModel), nil
	case "gemini":
		return NewGeminiService(config.GeminiAPIKey, config.GeminiBaseURL, config.GeminiModel), nil
	case "local", "":
		return NewLocalService(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", config.LLMProvider)
}

// Complete runs a single-shot prompt: one system instruction plus one user turn.
func Complete(ctx context.Context, c ChatClient, system, user string) (string, error) {
	var chat []ChatMessage
	if strings.TrimSpace(system) != "" {
		chat = append(chat, ChatMessage{Role: RoleSystem, Text: system})
	}
	chat = append(chat, ChatMessage{Role: RoleUser, Text: user})
	return c.Chat(ctx, chat)
}

// NormalizeRole maps provider spellings onto the three roles used here.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleSystem:
		return RoleSystem
	case RoleAssistant, "model", "bot", "ai":
		return RoleAssistant
	}
	return RoleUser
}

// ExtractJSON pulls the first JSON object or array out of a model reply,
// skipping code fences and surrounding prose. It returns "" when there is
// none.
func ExtractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if gjson.Valid(reply) && (strings.HasPrefix(reply, "{") || strings.HasPrefix(reply, "[")) {
		return reply
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(reply, pair[0])
		end := strings.LastIndex(reply, pair[1])
		if start < 0 || end <= start {
			continue
		}
		if cand := reply[start : end+1]; gjson.Valid(cand) {
			return cand
		}
	}
	return ""
}
