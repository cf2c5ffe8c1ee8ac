package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// LocalService is an offline provider. Replies are deterministic and
// mention how many user turns it saw, which makes history visible.
type LocalService struct {
	ChunkSize  int
	ChunkDelay time.Duration
}

func NewLocalService() *LocalService {
	return &LocalService{ChunkSize: 24, ChunkDelay: 30 * time.Millisecond}
}

func (s *LocalService) Chat(ctx context.Context, chat []ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var last string
	turns := 0
	grounded := false
	for _, m := range chat {
		switch NormalizeRole(m.Role) {
		case RoleUser:
			turns++
			last = strings.TrimSpace(m.Text)
		case RoleSystem:
			grounded = grounded || strings.TrimSpace(m.Text) != ""
		}
	}
	if last == "" {
		return "", ErrEmptyReply
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "[local #%d] %s\n\n", turns, truncate(last, 80))
	if grounded {
		fmt.Fprintln(b, "Based on the profile on file:")
	} else {
		fmt.Fprintln(b, "No profile on file yet, so this is general guidance:")
	}
	fmt.Fprintln(b, "- Lead with the outcome, then the actions you took.")
	fmt.Fprintln(b, "- Quantify impact where you can.")
	fmt.Fprintln(b, "- Tie the example back to the role you are targeting.")
	return strings.TrimSpace(b.String()), nil
}

func (s *LocalService) Stream(ctx context.Context, chat []ChatMessage, onDelta func(string)) (string, error) {
	full, err := s.Chat(ctx, chat)
	if err != nil {
		return "", err
	}
	step := s.ChunkSize
	if step <= 0 {
		step = len(full)
	}
	runes := []rune(full)
	for i := 0; i < len(runes); i += step {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := min(i+step, len(runes))
		if onDelta != nil {
			onDelta(string(runes[i:end]))
		}
		sleepWithContext(ctx, s.ChunkDelay)
	}
	return full, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
