package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type, only .docx, .txt and .md are allowed")
	ErrFileTooLarge    = errors.New("file too large")
)

var resumeExts = []string{".docx", ".txt", ".md"}

// ResumeFileStore keeps the original uploaded resume files on disk,
// one directory per user.
type ResumeFileStore struct {
	basePath string
	maxBytes int64
}

func NewResumeFileStore(uploadDir string, maxBytes int64) (*ResumeFileStore, error) {
	basePath := filepath.Join(uploadDir, "resumes")
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &ResumeFileStore{basePath: basePath, maxBytes: maxBytes}, nil
}

type SavedFile struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
}

// CheckUpload validates name and size before anything is read.
func (s *ResumeFileStore) CheckUpload(filename string, size int64) error {
	if !slices.Contains(resumeExts, strings.ToLower(filepath.Ext(filename))) {
		return ErrUnsupportedFile
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return fmt.Errorf("%w: maximum size is %d bytes", ErrFileTooLarge, s.maxBytes)
	}
	return nil
}

// Save writes data as the user's newest resume upload.
func (s *ResumeFileStore) Save(userID uint, filename string, data []byte) (*SavedFile, error) {
	if err := s.CheckUpload(filename, int64(len(data))); err != nil {
		return nil, err
	}

	userDir := filepath.Join(s.basePath, strconv.FormatUint(uint64(userID), 10))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create user dir: %w", err)
	}

	name := fmt.Sprintf("resume_%d%s", time.Now().UnixNano(), strings.ToLower(filepath.Ext(filename)))
	fullPath := filepath.Join(userDir, name)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}
	log.Printf("[storage] saved resume user=%d file=%s size=%d", userID, name, len(data))

	return &SavedFile{
		Filename: name,
		FilePath: fmt.Sprintf("%d/%s", userID, name),
		FileSize: int64(len(data)),
	}, nil
}

// Delete removes a stored file; a missing file is not an error.
func (s *ResumeFileStore) Delete(relPath string) error {
	if relPath == "" {
		return nil
	}
	fullPath := filepath.Join(s.basePath, filepath.Clean("/"+relPath))
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
