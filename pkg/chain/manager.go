package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ResumeAI/models"
	"ResumeAI/pkg/prompts"
	"ResumeAI/pkg/services"
	utils "ResumeAI/pkg/utills"

	"github.com/google/uuid"
)

const (
	ModeChat = "chat"
	ModeHelp = "help"

	chatTitleLen = 30
)

var (
	ErrEmptyQuery = errors.New("query is required")
	ErrProvider   = errors.New("language model call failed")
	ErrNotFound   = errors.New("conversation not found")
)

type Options struct {
	// Rehydrate reloads persisted turns into a handle that is no longer
	// live. Without it a returning conversation continues with an empty
	// model context.
	Rehydrate bool
	// Timeout bounds each model call; 0 means only the caller's context.
	Timeout time.Duration
}

type TurnRequest struct {
	UserID         uint
	ConversationID string // empty or unknown starts a new conversation
	Query          string
	Grounding      string // resume text the system prompt is built from
	Mode           string // ModeChat or ModeHelp, read when a handle is opened
	FirstName      string
}

type TurnResult struct {
	Reply          string `json:"answer"`
	ConversationID string `json:"chainId"`
	Created        bool   `json:"created"`
}

// Manager runs conversation turns. Turns on one id are strictly
// serialized; different ids proceed in parallel. A turn is persisted
// only after the model answered, and its history is updated only after
// the store committed.
type Manager struct {
	store   Store
	llm     services.ChatClient
	prompts *prompts.Set
	reg     *Registry
	opts    Options
	newID   func() string
}

func NewManager(store Store, llm services.ChatClient, p *prompts.Set, reg *Registry, opts Options) *Manager {
	if p == nil {
		p = prompts.Default()
	}
	return &Manager{
		store:   store,
		llm:     llm,
		prompts: p,
		reg:     reg,
		opts:    opts,
		newID:   uuid.NewString,
	}
}

// SubmitTurn sends one user message and returns the model's reply.
func (m *Manager) SubmitTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	return m.submit(ctx, req, nil)
}

// SubmitTurnStream is SubmitTurn with reply chunks forwarded to onDelta
// as the model produces them.
func (m *Manager) SubmitTurnStream(ctx context.Context, req TurnRequest, onDelta func(string)) (*TurnResult, error) {
	if onDelta == nil {
		onDelta = func(string) {}
	}
	return m.submit(ctx, req, onDelta)
}

func (m *Manager) submit(ctx context.Context, req TurnRequest, onDelta func(string)) (*TurnResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var (
		h      *Handle
		unlock func()
	)
	if id := strings.TrimSpace(req.ConversationID); id != "" {
		unlock = m.reg.Lock(id)
		found, err := m.resolve(ctx, req, id)
		if err != nil {
			unlock()
			return nil, err
		}
		if found != nil {
			h = found
		} else {
			unlock()
			log.Printf("[chain] unknown id=%s user=%d, starting new conversation", id, req.UserID)
		}
	}
	created := h == nil
	if created {
		system, err := m.systemPrompt(req)
		if err != nil {
			return nil, err
		}
		id := m.newID()
		unlock = m.reg.Lock(id)
		h = newHandle(id, req.UserID, req.Mode, system)
	}
	defer unlock()

	reply, err := m.ask(ctx, h.prompt(query), onDelta)
	if err != nil {
		log.Printf("[chain] model failed id=%s: %v", h.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	turn := Turn{
		UserID:   req.UserID,
		ChatID:   h.ID,
		ChatName: utils.ChatTitle(query, chatTitleLen),
		NewChat:  created,
		Query:    query,
		Reply:    reply,
		At:       time.Now(),
	}
	if err := m.store.SaveTurn(ctx, turn); err != nil {
		log.Printf("[chain] persist failed id=%s: %v", h.ID, err)
		return nil, fmt.Errorf("save turn: %w", err)
	}

	h.commit(query, reply)
	m.reg.put(h)
	return &TurnResult{Reply: reply, ConversationID: h.ID, Created: created}, nil
}

// resolve returns the caller's handle for id, rebuilding it from the store
// when it is no longer live. nil means the id is unknown to this user.
func (m *Manager) resolve(ctx context.Context, req TurnRequest, id string) (*Handle, error) {
	userID := req.UserID
	if h, ok := m.reg.get(id); ok {
		if h.UserID != userID {
			return nil, nil
		}
		return h, nil
	}
	ok, err := m.store.ChatExists(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("lookup conversation: %w", err)
	}
	if !ok {
		return nil, nil
	}

	// grounding is not stored with the chat; the current request's is used
	system, err := m.systemPrompt(req)
	if err != nil {
		return nil, err
	}
	h := newHandle(id, userID, req.Mode, system)
	if m.opts.Rehydrate {
		rows, err := m.store.ListMessages(ctx, userID, id)
		if err != nil {
			return nil, fmt.Errorf("rehydrate conversation: %w", err)
		}
		h.restore(rows)
		log.Printf("[chain] rehydrated id=%s turns=%d", id, len(rows))
	}
	return h, nil
}

func (m *Manager) systemPrompt(req TurnRequest) (string, error) {
	name := prompts.Chat
	if req.Mode == ModeHelp {
		name = prompts.Help
	}
	return m.prompts.Render(name, map[string]string{
		"first_name": req.FirstName,
		"context":    req.Grounding,
	})
}

func (m *Manager) ask(ctx context.Context, chat []services.ChatMessage, onDelta func(string)) (string, error) {
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}
	var (
		reply string
		err   error
	)
	if onDelta != nil {
		reply, err = m.llm.Stream(ctx, chat, onDelta)
	} else {
		reply, err = m.llm.Chat(ctx, chat)
	}
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", services.ErrEmptyReply
	}
	return reply, nil
}

// ListTurns returns a conversation's messages oldest first. An unknown
// id yields an empty list.
func (m *Manager) ListTurns(ctx context.Context, userID uint, id string) ([]models.Message, error) {
	msgs, err := m.store.ListMessages(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// ListConversations returns the user's chats newest first.
func (m *Manager) ListConversations(ctx context.Context, userID uint) ([]models.Chat, error) {
	chats, err := m.store.ListChats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	if chats == nil {
		chats = []models.Chat{}
	}
	return chats, nil
}

// DeleteConversation removes a conversation from the store and the
// registry. The id is unknown afterwards, so a later turn on it opens a
// new conversation.
func (m *Manager) DeleteConversation(ctx context.Context, userID uint, id string) error {
	unlock := m.reg.Lock(id)
	defer unlock()

	found, err := m.store.DeleteChat(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if h, ok := m.reg.get(id); ok && h.UserID == userID {
		m.reg.drop(id)
	}
	if !found {
		return ErrNotFound
	}
	log.Printf("[chain] deleted id=%s user=%d", id, userID)
	return nil
}

// Live reports whether id has a live handle.
func (m *Manager) Live(id string) bool {
	unlock := m.reg.Lock(id)
	defer unlock()
	_, ok := m.reg.get(id)
	return ok
}
