package resume

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"ResumeAI/models"
	"ResumeAI/pkg/database"
)

const sample = `Ada Lovelace
ada@example.com

Summary:
Engineer who likes engines.

Work Experience
Analytical Engines Ltd - Programmer
Wrote the first program.

Skills
Mathematics, Go
`

func TestSplit(t *testing.T) {
	got := Split(sample)
	want := []Section{
		{Header: "Summary", Content: "Engineer who likes engines."},
		{Header: "Work Experience", Content: "Analytical Engines Ltd - Programmer\nWrote the first program."},
		{Header: "Skills", Content: "Mathematics, Go"},
	}
	if len(got) != len(want) {
		t.Fatalf("sections = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("section %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestIsHeadingNeedsWholeLine(t *testing.T) {
	if IsHeading("I have experience with Go") {
		t.Fatalf("sentence treated as heading")
	}
	if !IsHeading("  EDUCATION ") {
		t.Fatalf("upper-case heading not recognized")
	}
}

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractDocx(t *testing.T) {
	data := docx(t, `<w:p><w:r><w:t>Skills</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t xml:space="preserve">Go, </w:t></w:r><w:r><w:t>SQL</w:t></w:r></w:p>`)
	text, err := Extract("cv.DOCX", data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "Skills\nGo, SQL" {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractRejects(t *testing.T) {
	if _, err := Extract("cv.pdf", []byte("%PDF")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("pdf: %v", err)
	}
	if _, err := Extract("cv.docx", []byte("not a zip")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("bad docx: %v", err)
	}
	if _, err := Extract("cv.txt", []byte(" \n ")); !errors.Is(err, ErrEmpty) {
		t.Fatalf("empty: %v", err)
	}
}

func TestReplaceOverwrites(t *testing.T) {
	db, err := database.Open("sqlite", "file:resume_replace?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if _, err := Replace(ctx, db, 1, "old text"); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	rows, err := Replace(ctx, db, 1, sample)
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}
	if len(rows) != 4 || rows[0].Section != models.FullResumeSection {
		t.Fatalf("rows = %+v", rows)
	}

	stored, _ := List(ctx, db, 1)
	if len(stored) != 4 {
		t.Fatalf("stored rows = %d, want 4", len(stored))
	}
	full, _ := FullText(ctx, db, 1)
	if full != sample[:len(sample)-1] {
		t.Fatalf("full text = %q", full)
	}
	exp, _ := Experience(ctx, db, 1)
	if exp != "Work Experience\nAnalytical Engines Ltd - Programmer\nWrote the first program." {
		t.Fatalf("experience = %q", exp)
	}
	if none, _ := FullText(ctx, db, 2); none != "" {
		t.Fatalf("other user sees %q", none)
	}
}

func TestGroundingAddsAnsweredQuestions(t *testing.T) {
	db, err := database.Open("sqlite", "file:resume_grounding?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if got, _ := Grounding(ctx, db, 1, ""); got != "" {
		t.Fatalf("empty grounding = %q", got)
	}
	if _, err := Replace(ctx, db, 1, "Skills\nGo"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	qs := []models.InterviewQuestion{
		{UserID: 1, Question: "Why Go?", Answer: "Fast builds."},
		{UserID: 1, Question: "Unanswered?"},
		{UserID: 2, Question: "Other user?", Answer: "Secret."},
	}
	if err := db.Create(&qs).Error; err != nil {
		t.Fatalf("create questions: %v", err)
	}

	got, err := Grounding(ctx, db, 1, "")
	if err != nil {
		t.Fatalf("grounding: %v", err)
	}
	want := "Skills\nGo\n\nInterview answers:\nQuestion: Why Go?\nAnswer: Fast builds."
	if got != want {
		t.Fatalf("grounding = %q, want %q", got, want)
	}

	// text sent with the request replaces the stored resume, answers stay
	got, _ = Grounding(ctx, db, 1, "  pasted resume ")
	if !strings.HasPrefix(got, "pasted resume\n\nInterview answers:") {
		t.Fatalf("grounding with text = %q", got)
	}
}
