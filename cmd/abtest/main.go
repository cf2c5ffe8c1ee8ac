// Command abtest runs a list of career questions through the configured
// model twice, once without and once with the resume as grounding, and
// saves both answers side by side for review.
//
//	ABTEST_RESUME=./cv.docx go run ./cmd/abtest
package main

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ResumeAI/pkg/config"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/resume"
	svc "ResumeAI/pkg/services"

	"github.com/google/uuid"
)

const (
	modeUngrounded = "ungrounded"
	modeGrounded   = "grounded"
)

type ResultItem struct {
	Query       string `json:"query"`
	Mode        string `json:"mode"` // ungrounded | grounded
	Response    string `json:"response"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms"`
	Provider    string `json:"provider"`
	Template    string `json:"template"`
	ContextHash string `json:"context_hash,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type RunSummary struct {
	RunID        string       `json:"run_id"`
	StartedAt    string       `json:"started_at"`
	EndedAt      string       `json:"ended_at"`
	Env          string       `json:"env"`
	Provider     string       `json:"provider"`
	ResumeFile   string       `json:"resume_file"`
	TotalQueries int          `json:"total_queries"`
	Results      []ResultItem `json:"results"`
}

func readQueries() ([]string, error) {
	candidates := []string{
		strings.TrimSpace(os.Getenv("ABTEST_QUERIES")),
		"cmd/abtest/queries.json",
		"queries.json",
	}
	var (
		data []byte
		err  error
	)
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if data, err = os.ReadFile(p); err == nil {
			break
		}
	}
	if data == nil {
		return nil, fmt.Errorf("cannot read queries.json: %w", err)
	}

	// queries.json can be either ["q1", "q2", ...] or [{"q": "..."}, ...]
	var arrAny []any
	if e := json.Unmarshal(data, &arrAny); e != nil {
		return nil, fmt.Errorf("invalid queries.json: %w", e)
	}
	out := make([]string, 0, len(arrAny))
	for _, v := range arrAny {
		switch t := v.(type) {
		case string:
			out = append(out, strings.TrimSpace(t))
		case map[string]any:
			if qv, ok := t["q"].(string); ok {
				out = append(out, strings.TrimSpace(qv))
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("queries.json is empty or malformed")
	}
	return out, nil
}

func readResume(path string) (string, error) {
	if path == "" {
		return "", errors.New("ABTEST_RESUME is not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return resume.Extract(path, data)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []ResultItem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"query", "mode", "duration_ms", "provider", "error", "response"})
	for _, it := range items {
		_ = w.Write([]string{it.Query, it.Mode, strconv.FormatInt(it.DurationMs, 10), it.Provider, it.Error, it.Response})
	}
	return w.Error()
}

func main() {
	if err := config.Load(); err != nil {
		fmt.Println("config:", err)
		os.Exit(1)
	}
	if config.LLMProvider == "local" {
		fmt.Println("[warn] LLM_PROVIDER=local – answers are canned. Set openai or gemini for a real comparison.")
	}

	queries, err := readQueries()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	resumePath := strings.TrimSpace(os.Getenv("ABTEST_RESUME"))
	grounding, err := readResume(resumePath)
	if err != nil {
		fmt.Println("resume:", err)
		os.Exit(1)
	}

	tmpl := prompts.Default()
	if config.PromptsFile != "" {
		if tmpl, err = prompts.Load(config.PromptsFile); err != nil {
			fmt.Println("prompts:", err)
			os.Exit(1)
		}
	}
	llm, err := svc.NewChatClient()
	if err != nil {
		fmt.Println("llm:", err)
		os.Exit(1)
	}

	// Optional sleep between calls (ms) to reduce rate limit risk
	sleepMs := 600
	if v, e := strconv.Atoi(strings.TrimSpace(os.Getenv("ABTEST_SLEEP_MS"))); e == nil && v >= 0 {
		sleepMs = v
	}
	firstName := strings.TrimSpace(os.Getenv("ABTEST_FIRST_NAME"))

	started := time.Now()
	runID := "abrun-" + started.Format("20060102-150405") + "-" + uuid.NewString()[:8]
	results := make([]ResultItem, 0, len(queries)*2)

	for _, q := range queries {
		for _, mode := range []string{modeUngrounded, modeGrounded} {
			ctxText := ""
			if mode == modeGrounded {
				ctxText = grounding
			}
			r := runOnce(llm, tmpl, q, mode, firstName, ctxText)
			results = append(results, r)
			fmt.Printf("[%s] %s -> %dms error=%v\n", mode, truncate(q, 64), r.DurationMs, r.Error != "")
			time.Sleep(time.Duration(sleepMs) * time.Millisecond)
		}
	}

	outDir := filepath.Join("cmd", "abtest", "results")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Println("failed to create results dir:", err)
		os.Exit(1)
	}
	stamp := time.Now().Format("20060102-150405")
	jsonPath := filepath.Join(outDir, "abtest-"+stamp+".json")
	csvPath := filepath.Join(outDir, "abtest-"+stamp+".csv")

	summary := RunSummary{
		RunID:        runID,
		StartedAt:    started.Format(time.RFC3339),
		EndedAt:      time.Now().Format(time.RFC3339),
		Env:          config.AppEnv,
		Provider:     config.LLMProvider,
		ResumeFile:   resumePath,
		TotalQueries: len(queries),
		Results:      results,
	}
	if err := writeJSON(jsonPath, summary); err != nil {
		fmt.Println("failed to write JSON:", err)
		os.Exit(1)
	}
	if err := writeCSV(csvPath, results); err != nil {
		fmt.Println("failed to write CSV:", err)
		os.Exit(1)
	}

	fmt.Println("\nSaved:")
	fmt.Println(" -", jsonPath)
	fmt.Println(" -", csvPath)
}

func runOnce(llm svc.ChatClient, tmpl *prompts.Set, q, mode, firstName, grounding string) ResultItem {
	r := ResultItem{
		Query:    q,
		Mode:     mode,
		Provider: config.LLMProvider,
		Template: prompts.Chat,
	}
	if grounding != "" {
		h := sha256.Sum256([]byte(grounding))
		r.ContextHash = hex.EncodeToString(h[:])
	}

	system, err := tmpl.Render(prompts.Chat, map[string]string{"first_name": firstName, "context": grounding})
	if err != nil {
		r.Error = err.Error()
		return r
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.LLMTimeoutSecond)*time.Second)
	defer cancel()
	t0 := time.Now()
	resp, err := svc.Complete(ctx, llm, system, q)
	r.DurationMs = time.Since(t0).Milliseconds()
	r.Timestamp = time.Now().Format(time.RFC3339)
	r.Response = strings.TrimSpace(resp)
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
