package controllers

import (
	"ResumeAI/models"
	"ResumeAI/pkg/chain"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// browsable tables; every one has a user_id column
var readableTables = []string{"chat", "messages", "resume", "job_applications", "interview_questions"}

// deletable tables other than chat, which goes through the chain manager.
// Messages are only removed with their conversation.
var deletableModels = map[string]func() any{
	"resume":              func() any { return &models.Resume{} },
	"job_applications":    func() any { return &models.JobApplication{} },
	"interview_questions": func() any { return &models.InterviewQuestion{} },
}

func GetDatabaseTables(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := db.Migrator().GetTables()
		if err != nil {
			dbError(c, "tables", err)
			return
		}
		tables := []gin.H{}
		for _, n := range names {
			if slices.Contains(readableTables, n) {
				tables = append(tables, gin.H{"name": n})
			}
		}
		c.JSON(http.StatusOK, gin.H{"tables": tables})
	}
}

// GetTableData returns the caller's rows of one table.
func GetTableData(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("tableName")
		if !slices.Contains(readableTables, name) {
			c.JSON(http.StatusNotFound, gin.H{"msg": "unknown table"})
			return
		}
		var rows []map[string]any
		if err := db.WithContext(c.Request.Context()).Table(name).Where("user_id = ?", currentUser(c)).Order("id ASC").Find(&rows).Error; err != nil {
			dbError(c, "tables", err)
			return
		}
		if rows == nil {
			rows = []map[string]any{}
		}
		c.JSON(http.StatusOK, rows)
	}
}

// DeleteRow deletes one of the caller's rows. For chat the row id is the
// conversation id.
func DeleteRow(db *gorm.DB, chains *chain.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := c.Param("table")
		if table == "chat" {
			chatID := strings.TrimSpace(c.Param("rowId"))
			if err := chains.DeleteConversation(c.Request.Context(), currentUser(c), chatID); err != nil {
				turnError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"deleted_rows": 1})
			return
		}

		newModel, ok := deletableModels[table]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"msg": "unknown table"})
			return
		}
		id, ok := paramID(c, "rowId")
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid row id"})
			return
		}
		res := db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", id, currentUser(c)).Delete(newModel())
		if res.Error != nil {
			dbError(c, "tables", res.Error)
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"msg": "row not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_rows": res.RowsAffected})
	}
}
