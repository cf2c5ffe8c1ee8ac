package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// OpenAIService talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIService struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAIService(apiKey, baseURL, model string) *OpenAIService {
	return &OpenAIService{
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: 0,
		client:      &http.Client{},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream,omitempty"`
}

func (s *OpenAIService) buildRequest(chat []ChatMessage, stream bool) openAIRequest {
	msgs := make([]openAIMessage, 0, len(chat))
	for _, m := range chat {
		msgs = append(msgs, openAIMessage{Role: NormalizeRole(m.Role), Content: m.Text})
	}
	return openAIRequest{
		Model:       s.model,
		Messages:    msgs,
		Temperature: s.temperature,
		Stream:      stream,
	}
}

func (s *OpenAIService) post(ctx context.Context, body openAIRequest) (*http.Response, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := s.baseURL + "/chat/completions"
	log.Printf("[llm] openai POST %s model=%s stream=%v messages=%d", url, body.Model, body.Stream, len(body.Messages))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if body.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		msg := gjson.GetBytes(b, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(b))
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return resp, nil
}

func (s *OpenAIService) Chat(ctx context.Context, chat []ChatMessage) (string, error) {
	resp, err := s.post(ctx, s.buildRequest(chat, false))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	if !gjson.ValidBytes(b) {
		return "", fmt.Errorf("malformed response: %.200s", string(b))
	}
	text := strings.TrimSpace(gjson.GetBytes(b, "choices.0.message.content").String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

func (s *OpenAIService) Stream(ctx context.Context, chat []ChatMessage, onDelta func(string)) (string, error) {
	resp, err := s.post(ctx, s.buildRequest(chat, true))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		if !gjson.Valid(data) {
			return full.String(), fmt.Errorf("malformed stream chunk: %.200s", data)
		}
		if chunk := gjson.Get(data, "choices.0.delta.content").String(); chunk != "" {
			full.WriteString(chunk)
			if onDelta != nil {
				onDelta(chunk)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("stream read error: %w", err)
	}
	text := strings.TrimSpace(full.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
