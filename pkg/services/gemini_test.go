package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tidwall/gjson"
)

func TestGeminiPayloadMapsRoles(t *testing.T) {
	s := NewGeminiService("k", "http://unused", "gemini-x")
	body, err := s.payload([]ChatMessage{
		{Role: RoleSystem, Text: "sys"},
		{Role: RoleUser, Text: "q1"},
		{Role: RoleAssistant, Text: "a1"},
		{Role: RoleUser, Text: "q2"},
	})
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	res := gjson.ParseBytes(body)
	if got := res.Get("systemInstruction.parts.0.text").String(); got != "sys" {
		t.Fatalf("system instruction = %q", got)
	}
	if n := len(res.Get("contents").Array()); n != 3 {
		t.Fatalf("expected 3 contents, got %d", n)
	}
	if role := res.Get("contents.1.role").String(); role != "model" {
		t.Fatalf("expected assistant mapped to model, got %q", role)
	}
}

func TestGeminiModelListDeduplicates(t *testing.T) {
	if s := NewGeminiService("k", "", geminiFallbackModel); len(s.models) != 1 {
		t.Fatalf("expected single model, got %v", s.models)
	}
	if s := NewGeminiService("k", "", "gemini-pro"); len(s.models) != 2 || s.models[1] != geminiFallbackModel {
		t.Fatalf("expected fallback appended, got %v", s.models)
	}
}

func TestGeminiChatFallsBackToSecondModel(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		_, _ = io.ReadAll(r.Body)
		if strings.Contains(r.URL.Path, "gemini-broken") {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":{"message":"bad model"}}`)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"Hi "},{"text":"there"}]}}]}`)
	}))
	defer srv.Close()

	s := NewGeminiService("k", srv.URL, "gemini-broken")
	s.retryDelay = 0
	reply, err := s.Chat(context.Background(), []ChatMessage{{Role: RoleUser, Text: "hello"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Hi there" {
		t.Fatalf("reply = %q", reply)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestGeminiRetriesOnceOnQuota(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `RESOURCE_EXHAUSTED`)
			return
		}
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	s := NewGeminiService("k", srv.URL, geminiFallbackModel)
	s.retryDelay = 0
	if reply, err := s.Chat(context.Background(), []ChatMessage{{Role: RoleUser, Text: "x"}}); err != nil || reply != "ok" {
		t.Fatalf("reply=%q err=%v", reply, err)
	}
}

func TestGeminiAllModelsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewGeminiService("k", srv.URL, "gemini-a")
	s.retryDelay = 0
	_, err := s.Chat(context.Background(), []ChatMessage{{Role: RoleUser, Text: "x"}})
	if err == nil || !strings.Contains(err.Error(), "all gemini models failed") {
		t.Fatalf("expected aggregate failure, got %v", err)
	}
}

func TestGeminiStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("alt") != "sse" {
			t.Errorf("expected alt=sse")
		}
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"A\"}]}}]}\n\n")
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"B\"}]}}]}\n\n")
	}))
	defer srv.Close()

	s := NewGeminiService("k", srv.URL, geminiFallbackModel)
	var got strings.Builder
	full, err := s.Stream(context.Background(), []ChatMessage{{Role: RoleUser, Text: "x"}}, func(c string) { got.WriteString(c) })
	if err != nil || full != "AB" || got.String() != "AB" {
		t.Fatalf("full=%q deltas=%q err=%v", full, got.String(), err)
	}
}

func TestGeminiStreamDoesNotFallBackAfterDeltas(t *testing.T) {
	var fallbackCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "gemini-flaky") {
			fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"partial \"}]}}]}\n\n")
			// longer than the scanner buffer, so the read fails after the first delta
			fmt.Fprint(w, "data: "+strings.Repeat("x", 2<<20)+"\n\n")
			return
		}
		atomic.AddInt32(&fallbackCalls, 1)
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"final answer\"}]}}]}\n\n")
	}))
	defer srv.Close()

	s := NewGeminiService("k", srv.URL, "gemini-flaky")
	s.retryDelay = 0
	var deltas []string
	reply, err := s.Stream(context.Background(), []ChatMessage{{Role: RoleUser, Text: "x"}}, func(c string) { deltas = append(deltas, c) })
	if err == nil {
		t.Fatalf("expected error after interrupted stream, got reply %q", reply)
	}
	if reply != "" {
		t.Fatalf("reply = %q, want empty", reply)
	}
	if len(deltas) != 1 || deltas[0] != "partial " {
		t.Fatalf("deltas = %q", deltas)
	}
	if n := atomic.LoadInt32(&fallbackCalls); n != 0 {
		t.Fatalf("fallback model called %d times", n)
	}
}

func TestGeminiStreamFallsBackBeforeDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "gemini-broken") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "data: {\"candidates\":[{\"content\":{\"parts\":[{\"text\":\"final answer\"}]}}]}\n\n")
	}))
	defer srv.Close()

	s := NewGeminiService("k", srv.URL, "gemini-broken")
	s.retryDelay = 0
	var got strings.Builder
	reply, err := s.Stream(context.Background(), []ChatMessage{{Role: RoleUser, Text: "x"}}, func(c string) { got.WriteString(c) })
	if err != nil || reply != "final answer" || got.String() != "final answer" {
		t.Fatalf("reply=%q deltas=%q err=%v", reply, got.String(), err)
	}
}
