package controllers

import (
	"ResumeAI/middleware"
	"ResumeAI/models"
	"ResumeAI/pkg/chain"
	"ResumeAI/pkg/resume"
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GPTAPICall runs one chat turn.
//
//	-> {query, chainId?, resume?, type?: "chat"|"help"}
//	<- {answer, chainId}
func GPTAPICall(db *gorm.DB, chains *chain.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)

		var body struct {
			Query   string `json:"query"`
			ChainID string `json:"chainId"`
			Resume  string `json:"resume"`
			Type    string `json:"type"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "query is required"})
			return
		}
		dupKey := body.ChainID + "\x00" + body.Query
		if !middleware.DuplicateGuard(uid, dupKey) {
			c.JSON(http.StatusTooManyRequests, gin.H{"msg": "duplicate message, please wait"})
			return
		}

		req, err := turnRequest(c.Request.Context(), db, uid, body.ChainID, body.Query, body.Resume, body.Type)
		if errors.Is(err, errUserNotFound) {
			middleware.ForgetDuplicate(uid, dupKey)
			c.JSON(http.StatusNotFound, gin.H{"msg": "User not found"})
			return
		}
		if err != nil {
			middleware.ForgetDuplicate(uid, dupKey)
			dbError(c, "chat", err)
			return
		}

		release, err := middleware.AcquireUserSlot(c.Request.Context(), uid)
		if err != nil {
			middleware.ForgetDuplicate(uid, dupKey)
			c.JSON(http.StatusTooManyRequests, gin.H{"msg": "too many requests"})
			return
		}
		defer release()

		res, err := chains.SubmitTurn(c.Request.Context(), req)
		if err != nil {
			middleware.ForgetDuplicate(uid, dupKey)
			turnError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"answer": res.Reply, "chainId": res.ConversationID})
	}
}

var errUserNotFound = errors.New("user not found")

// turnRequest fills in the user's name and the grounding: the resume the
// client sent, or the stored one, plus answered interview questions.
func turnRequest(ctx context.Context, db *gorm.DB, uid uint, chainID, query, grounding, mode string) (chain.TurnRequest, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chain.TurnRequest{}, errUserNotFound
		}
		return chain.TurnRequest{}, err
	}
	grounding, err := resume.Grounding(ctx, db, user.ID, grounding)
	if err != nil {
		return chain.TurnRequest{}, err
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != chain.ModeHelp {
		mode = chain.ModeChat
	}
	return chain.TurnRequest{
		UserID:         user.ID,
		ConversationID: strings.TrimSpace(chainID),
		Query:          query,
		Grounding:      grounding,
		Mode:           mode,
		FirstName:      user.FirstName,
	}, nil
}

// GetMessages lists a conversation's messages oldest first.
func GetMessages(chains *chain.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := strings.TrimSpace(c.Query("chat_id"))
		if chatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "chat_id is required"})
			return
		}
		msgs, err := chains.ListTurns(c.Request.Context(), currentUser(c), chatID)
		if err != nil {
			turnError(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

// ListChats returns the user's conversations newest first.
func ListChats(chains *chain.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		chats, err := chains.ListConversations(c.Request.Context(), currentUser(c))
		if err != nil {
			turnError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chats": chats})
	}
}

// DeleteConversation removes one conversation and its messages.
func DeleteConversation(chains *chain.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		chatID := strings.TrimSpace(c.Param("chat_id"))
		if err := chains.DeleteConversation(c.Request.Context(), currentUser(c), chatID); err != nil {
			turnError(c, err)
			return
		}
		log.Printf("[chat] user=%d deleted chat=%s", currentUser(c), chatID)
		c.JSON(http.StatusOK, gin.H{"deleted_rows": 1})
	}
}
