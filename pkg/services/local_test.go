package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLocalCountsUserTurns(t *testing.T) {
	s := &LocalService{}
	reply, err := s.Chat(context.Background(), []ChatMessage{
		{Role: RoleSystem, Text: "resume text"},
		{Role: RoleUser, Text: "first"},
		{Role: RoleAssistant, Text: "answer"},
		{Role: RoleUser, Text: "second"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !strings.HasPrefix(reply, "[local #2] second") {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !strings.Contains(reply, "profile on file") {
		t.Fatalf("expected grounded wording, got %q", reply)
	}
}

func TestLocalRejectsEmptyChat(t *testing.T) {
	if _, err := (&LocalService{}).Chat(context.Background(), nil); !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestLocalStreamReassembles(t *testing.T) {
	s := &LocalService{ChunkSize: 5}
	chat := []ChatMessage{{Role: RoleUser, Text: "how do I describe leadership?"}}
	var b strings.Builder
	full, err := s.Stream(context.Background(), chat, func(c string) { b.WriteString(c) })
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if b.String() != full {
		t.Fatalf("deltas %q do not match full %q", b.String(), full)
	}
}

func TestNormalizeRole(t *testing.T) {
	cases := map[string]string{"model": RoleAssistant, "BOT": RoleAssistant, "system": RoleSystem, "": RoleUser, "user": RoleUser}
	for in, want := range cases {
		if got := NormalizeRole(in); got != want {
			t.Errorf("NormalizeRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`["a","b"]`:                          `["a","b"]`,
		"```json\n{\"k\": \"v\"}\n```":       `{"k": "v"}`,
		`Sure! Here you go: ["q1", "q2"] :)`: `["q1", "q2"]`,
		`no json here`:                       ``,
	}
	for in, want := range cases {
		if got := ExtractJSON(in); got != want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
