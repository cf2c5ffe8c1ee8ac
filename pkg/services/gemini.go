package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const geminiFallbackModel = "gemini-2.0-flash"

type GeminiService struct {
	apiKey     string
	baseURL    string
	models     []string
	retryDelay time.Duration
	client     *http.Client
}

// NewGeminiService tries model first and falls back to gemini-2.0-flash.
func NewGeminiService(apiKey, baseURL, model string) *GeminiService {
	models := []string{}
	for _, m := range []string{model, geminiFallbackModel} {
		m = strings.TrimSpace(m)
		if m != "" && (len(models) == 0 || models[0] != m) {
			models = append(models, m)
		}
	}
	return &GeminiService{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		models:     models,
		retryDelay: 2 * time.Second,
		client:     &http.Client{},
	}
}

func (s *GeminiService) payload(chat []ChatMessage) ([]byte, error) {
	var system []string
	contents := make([]any, 0, len(chat))
	for _, m := range chat {
		role := NormalizeRole(m.Role)
		if role == RoleSystem {
			system = append(system, m.Text)
			continue
		}
		if role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []any{map[string]any{"text": m.Text}},
		})
	}
	reqBody := map[string]any{
		"contents": contents,
		"generationConfig": map[string]any{
			"temperature":     0.2,
			"maxOutputTokens": 2048,
			"topK":            40,
			"topP":            0.9,
		},
	}
	if len(system) > 0 {
		reqBody["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": strings.Join(system, "\n\n")}},
		}
	}
	return json.Marshal(reqBody)
}

func (s *GeminiService) Chat(ctx context.Context, chat []ChatMessage) (string, error) {
	return s.run(ctx, chat, func(model string, body []byte) (string, error) {
		return s.callGenerateContent(ctx, model, body)
	}, nil)
}

// Stream falls back like Chat only until the first delta is forwarded.
// After that a failure ends the call.
func (s *GeminiService) Stream(ctx context.Context, chat []ChatMessage, onDelta func(string)) (string, error) {
	emitted := false
	forward := func(chunk string) {
		emitted = true
		if onDelta != nil {
			onDelta(chunk)
		}
	}
	return s.run(ctx, chat, func(model string, body []byte) (string, error) {
		return s.callStreamGenerateContent(ctx, model, body, forward)
	}, func() bool { return emitted })
}

// run walks the model list, retrying each model once on quota/overload errors.
// Once sent reports true, a failed attempt is returned as is.
func (s *GeminiService) run(ctx context.Context, chat []ChatMessage, call func(model string, body []byte) (string, error), sent func() bool) (string, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		log.Printf("[llm] GEMINI_API_KEY is not set")
		return "", ErrMissingAPIKey
	}
	body, err := s.payload(chat)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var failures []string
	for _, m := range s.models {
		text, err := call(m, body)
		if err != nil && isRetriable(err) && !partial(sent) {
			sleepWithContext(ctx, s.retryDelay)
			text, err = call(m, body)
		}
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
		if err == nil {
			err = ErrEmptyReply
		}
		if partial(sent) {
			log.Printf("[llm] gemini model %s failed mid-stream: %v", m, err)
			return "", fmt.Errorf("gemini stream interrupted: %w", err)
		}
		failures = append(failures, fmt.Sprintf("%s -> %v", m, err))
		log.Printf("[llm] gemini model %s failed: %v", m, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.New("all gemini models failed: " + strings.Join(failures, "; "))
}

func (s *GeminiService) do(ctx context.Context, model, method string, body []byte) (*http.Response, error) {
	url := fmt.Sprintf("%s/models/%s:%s", s.baseURL, model, method)
	log.Printf("[llm] gemini POST %s", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

func (s *GeminiService) callGenerateContent(ctx context.Context, model string, body []byte) (string, error) {
	resp, err := s.do(ctx, model, "generateContent", body)
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
	return candidateText(gjson.ParseBytes(b)), nil
}

func (s *GeminiService) callStreamGenerateContent(ctx context.Context, model string, body []byte, onDelta func(string)) (string, error) {
	resp, err := s.do(ctx, model, "streamGenerateContent?alt=sse", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "data:") {
			line = strings.TrimSpace(line[5:])
		}
		if !gjson.Valid(line) {
			continue
		}
		if txt := candidateText(gjson.Parse(line)); txt != "" {
			full.WriteString(txt)
			if onDelta != nil {
				onDelta(txt)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("stream read error: %w", err)
	}
	return full.String(), nil
}

func partial(sent func() bool) bool {
	return sent != nil && sent()
}

func candidateText(res gjson.Result) string {
	var b strings.Builder
	for _, p := range res.Get("candidates.0.content.parts.#.text").Array() {
		b.WriteString(p.String())
	}
	return b.String()
}

func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	if strings.Contains(e, "status 503") || strings.Contains(e, "unavailable") {
		return true
	}
	if strings.Contains(e, "status 429") || strings.Contains(e, "resource_exhausted") || strings.Contains(e, "quota") {
		return true
	}
	return false
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
