package controllers

import (
	"ResumeAI/pkg/resume"
	"ResumeAI/pkg/services"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UploadResume stores the uploaded file and replaces the user's resume
// rows with its text and sections.
func UploadResume(db *gorm.DB, files *services.ResumeFileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := currentUser(c)

		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "file is required"})
			return
		}
		if err := files.CheckUpload(fh.Filename, fh.Size); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "failed to read file"})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "failed to read file"})
			return
		}

		text, err := resume.Extract(fh.Filename, data)
		if errors.Is(err, resume.ErrUnsupported) || errors.Is(err, resume.ErrEmpty) {
			c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
			return
		}
		if err != nil {
			log.Printf("[resume] extract user=%d: %v", uid, err)
			c.JSON(http.StatusBadRequest, gin.H{"msg": "could not read resume"})
			return
		}

		saved, err := files.Save(uid, fh.Filename, data)
		if err != nil {
			log.Printf("[resume] save user=%d: %v", uid, err)
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to save file"})
			return
		}
		rows, err := resume.Replace(c.Request.Context(), db, uid, text)
		if err != nil {
			_ = files.Delete(saved.FilePath)
			dbError(c, "resume", err)
			return
		}

		sections := make([]string, 0, len(rows))
		for _, r := range rows[1:] {
			sections = append(sections, r.Section)
		}
		c.JSON(http.StatusOK, gin.H{"msg": "Resume uploaded", "file": saved, "sections": sections})
	}
}

// FetchExperienceData returns the stored resume rows.
func FetchExperienceData(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := resume.List(c.Request.Context(), db, currentUser(c))
		if err != nil {
			dbError(c, "resume", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"resume": rows})
	}
}
