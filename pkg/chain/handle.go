package chain

import (
	"ResumeAI/models"
	"ResumeAI/pkg/services"
)

// Handle is the live state of one conversation: the system prompt it was
// opened with and the committed history. A handle is only read or changed
// while its id is locked in the Registry.
type Handle struct {
	ID     string
	UserID uint
	Mode   string

	system  string
	history []services.ChatMessage
}

func newHandle(id string, userID uint, mode, system string) *Handle {
	return &Handle{ID: id, UserID: userID, Mode: mode, system: system}
}

// prompt is the model input for one more user turn.
func (h *Handle) prompt(query string) []services.ChatMessage {
	msgs := make([]services.ChatMessage, 0, len(h.history)+2)
	if h.system != "" {
		msgs = append(msgs, services.ChatMessage{Role: services.RoleSystem, Text: h.system})
	}
	msgs = append(msgs, h.history...)
	return append(msgs, services.ChatMessage{Role: services.RoleUser, Text: query})
}

func (h *Handle) commit(query, reply string) {
	h.history = append(h.history,
		services.ChatMessage{Role: services.RoleUser, Text: query},
		services.ChatMessage{Role: services.RoleAssistant, Text: reply},
	)
}

// restore replaces the history with persisted turns.
func (h *Handle) restore(rows []models.Message) {
	h.history = h.history[:0]
	for _, m := range rows {
		role := services.RoleUser
		if m.Type == models.SenderBot {
			role = services.RoleAssistant
		}
		h.history = append(h.history, services.ChatMessage{Role: role, Text: m.Message})
	}
}

// History returns a copy of the committed turns.
func (h *Handle) History() []services.ChatMessage {
	return append([]services.ChatMessage(nil), h.history...)
}
