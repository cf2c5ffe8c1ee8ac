package controllers

import (
	"ResumeAI/middleware"
	"ResumeAI/models"
	"ResumeAI/pkg/chain"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

func currentUser(c *gin.Context) uint {
	return middleware.CurrentUserID(c)
}

func loadUser(db *gorm.DB, c *gin.Context) (*models.User, error) {
	var user models.User
	if err := db.WithContext(c.Request.Context()).First(&user, currentUser(c)).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// paramID reads a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := cast.ToUintE(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// turnError maps a chain error onto a status and a client message.
func turnError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chain.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"msg": "query is required"})
	case errors.Is(err, chain.ErrProvider):
		c.JSON(http.StatusBadGateway, gin.H{"msg": "Error fetching answer from the language model"})
	case errors.Is(err, chain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "conversation not found"})
	default:
		log.Printf("[chat] storage error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
	}
}

func dbError(c *gin.Context, tag string, err error) {
	log.Printf("[%s] db error: %v", tag, err)
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
}
